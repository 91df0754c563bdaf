package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"market-pos/checkout"
	"market-pos/config"
	"market-pos/handler"
	"market-pos/printer"
	"market-pos/receipt"
	"market-pos/service"
	"market-pos/store"
)

// HTTP API
// POST /products, GET /products, GET /products/low-stock, GET|PUT|DELETE /products/{barcode}
// POST /stock/in, /stock/out, /stock/adjust; GET /stock/movements
// POST /cart/add, /cart/update, /cart/remove, /cart/clear; GET /cart/list
// POST /checkout/sale
// GET /sales, /sales/{id}, /sales/{id}/receipt; POST /sales/{id}/reprint
// POST /printer/connect, /printer/disconnect, /printer/test, /printer/drawer; GET /printer/status
// GET /backup/export; POST /backup/import; GET /logs

// cliActor is the audit user for commands run from the shell.
const cliActor = "admin"

func main() {
	cliApp := &cli.App{
		Name:  "market-pos",
		Usage: "point of sale with stock ledger and receipt printer",
		Commands: []*cli.Command{
			{Name: "serve", Usage: "run the HTTP API", Action: serve},
			{Name: "migrate", Usage: "apply database migrations", Action: migrateCmd},
			{Name: "seed", Usage: "load default users and products into an empty store", Action: seedCmd},
			{Name: "ports", Usage: "list serial ports", Action: portsCmd},
			{
				Name:   "print-test",
				Usage:  "print a test receipt",
				Flags:  []cli.Flag{&cli.StringFlag{Name: "port", Usage: "serial port, defaults to POS_PRINTER_PORT"}},
				Action: printTestCmd,
			},
			{
				Name:   "export",
				Usage:  "write a JSON backup",
				Flags:  []cli.Flag{&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "file to write, stdout when empty"}},
				Action: exportCmd,
			},
			{
				Name:      "import",
				Usage:     "replace all data with a JSON backup",
				ArgsUsage: "FILE",
				Action:    importCmd,
			},
			{Name: "env", Usage: "show the recognised environment variables", Action: func(*cli.Context) error { return config.Usage() }},
		},
	}
	if err := cliApp.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type app struct {
	cfg   config.Config
	log   *logrus.Logger
	store store.Store
	drv   *printer.Driver
	svc   *service.Service
}

func setup(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	log := cfg.Logger()

	var st store.Store
	if cfg.DatabaseURL == "" {
		log.Warn("POS_DATABASE_URL not set, using in-memory store")
		st = store.NewMemoryStore()
	} else {
		pg, err := store.NewPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := pg.Migrate(); err != nil {
			pg.Close()
			return nil, err
		}
		st = pg
	}

	layout := receipt.DefaultLayout()
	layout.Width = cfg.ReceiptWidth
	layout.Title = cfg.StoreName
	layout.Subtitle = cfg.StoreSubtitle
	layout.Location = cfg.Location()
	if cfg.ReceiptCharset != "" {
		enc, err := receipt.Charset(cfg.ReceiptCharset)
		if err != nil {
			st.Close()
			return nil, err
		}
		layout.Encoding = enc
	}

	tr := printer.NewTransport(printer.NewSerialOpener(), cfg.PrinterOpenTimeout, cfg.PrinterWriteTimeout, log)
	drv := printer.NewDriver(tr, cfg.PrinterPort, layout, log)
	svc := service.NewService(st, drv, checkout.Options{AutoPrint: cfg.AutoPrint, PrintTimeout: cfg.PrintTimeout}, log)

	if cfg.Seed || cfg.DatabaseURL == "" {
		if _, err := svc.Seed(ctx); err != nil {
			st.Close()
			return nil, err
		}
	}
	return &app{cfg: cfg, log: log, store: st, drv: drv, svc: svc}, nil
}

func (a *app) close() {
	a.drv.Disconnect()
	if err := a.store.Close(); err != nil {
		a.log.WithError(err).Warn("store_close_failed")
	}
}

func serve(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := setup(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	if a.cfg.PrinterAutoConnect {
		if _, err := a.svc.ConnectPrinter(ctx, cliActor, ""); err != nil {
			a.log.WithError(err).Warn("printer_autoconnect_failed")
		}
	}

	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           handler.NewRouter(handler.NewHandler(a.svc), a.log),
		ReadHeaderTimeout: 10 * time.Second,
	}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.log.WithField("addr", srv.Addr).Info("server_listening")
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "listen")
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		a.log.Info("server_shutting_down")
		sctx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
		defer cancel()
		return errors.Wrap(srv.Shutdown(sctx), "shutdown")
	})
	return g.Wait()
}

func migrateCmd(c *cli.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.DatabaseURL == "" {
		return errors.New("POS_DATABASE_URL is required")
	}
	pg, err := store.NewPostgresStore(c.Context, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pg.Close()
	if err := pg.Migrate(); err != nil {
		return err
	}
	cfg.Logger().Info("migrations_applied")
	return nil
}

func seedCmd(c *cli.Context) error {
	a, err := setup(c.Context)
	if err != nil {
		return err
	}
	defer a.close()
	seeded, err := a.svc.Seed(c.Context)
	if err != nil {
		return err
	}
	a.log.WithField("seeded", seeded).Info("seed_finished")
	return nil
}

func portsCmd(c *cli.Context) error {
	ports, err := printer.ListPorts()
	if err != nil {
		return err
	}
	for _, p := range ports {
		fmt.Fprintln(c.App.Writer, p)
	}
	return nil
}

func printTestCmd(c *cli.Context) error {
	a, err := setup(c.Context)
	if err != nil {
		return err
	}
	defer a.close()
	if _, err := a.svc.ConnectPrinter(c.Context, cliActor, c.String("port")); err != nil {
		return err
	}
	return a.svc.PrintTest(c.Context, cliActor)
}

func exportCmd(c *cli.Context) error {
	a, err := setup(c.Context)
	if err != nil {
		return err
	}
	defer a.close()

	out := c.App.Writer
	if name := c.String("out"); name != "" {
		f, err := os.Create(name)
		if err != nil {
			return errors.Wrap(err, "create backup file")
		}
		defer f.Close()
		out = f
	}
	return a.svc.Export(c.Context, cliActor, out)
}

func importCmd(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("usage: market-pos import FILE", 2)
	}
	a, err := setup(c.Context)
	if err != nil {
		return err
	}
	defer a.close()

	f, err := os.Open(c.Args().First())
	if err != nil {
		return errors.Wrap(err, "open backup file")
	}
	defer f.Close()
	sum, err := a.svc.Import(c.Context, cliActor, f)
	if err != nil {
		return err
	}
	a.log.WithFields(logrus.Fields{
		"products":       sum.Products,
		"sales":          sum.Sales,
		"users":          sum.Users,
		"logs":           sum.Logs,
		"stockMovements": sum.StockMovements,
	}).Info("backup_imported")
	return nil
}
