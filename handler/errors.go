package handler

import (
	"net/http"

	"github.com/pkg/errors"

	"market-pos/backup"
	"market-pos/checkout"
	"market-pos/inventory"
	"market-pos/printer"
	"market-pos/sales"
	"market-pos/session"
	"market-pos/store"
)

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	var (
		ve *checkout.ValidationError
		fe *backup.ImportFormatError
		ce *printer.ConnectionError
		pe *printer.PrintError
		we *printer.WriteError
	)
	switch {
	case errors.As(err, &ve), errors.As(err, &fe),
		errors.Is(err, session.ErrOperatorRequired),
		errors.Is(err, session.ErrInvalidQuantity),
		errors.Is(err, inventory.ErrInvalidQuantity),
		errors.Is(err, inventory.ErrInvalidProduct):
		return http.StatusBadRequest
	case errors.Is(err, inventory.ErrProductNotFound),
		errors.Is(err, sales.ErrSaleNotFound),
		errors.Is(err, session.ErrNotInCart):
		return http.StatusNotFound
	case errors.Is(err, inventory.ErrInsufficientStock),
		errors.Is(err, store.ErrAlreadyExists),
		errors.Is(err, sales.ErrDuplicateSale),
		errors.Is(err, printer.ErrBusy):
		return http.StatusConflict
	case errors.As(err, &ce), errors.As(err, &pe), errors.As(err, &we),
		errors.Is(err, printer.ErrNotConnected):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, err error) {
	writeErr(w, statusFor(err), err.Error())
}
