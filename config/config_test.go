package config

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	c, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":8082", c.HTTPAddr)
	assert.Equal(t, 15*time.Second, c.ShutdownTimeout)
	assert.Equal(t, "", c.DatabaseURL)
	assert.True(t, c.AutoPrint)
	assert.Equal(t, 5*time.Second, c.PrinterOpenTimeout)
	assert.Equal(t, 10*time.Second, c.PrinterWriteTimeout)
	assert.Equal(t, 32, c.ReceiptWidth)
	assert.Equal(t, "MARKET OTOMASYONU", c.StoreName)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("POS_HTTP_ADDR", ":9000")
	t.Setenv("POS_AUTO_PRINT", "false")
	t.Setenv("POS_PRINTER_PORT", "COM3")
	t.Setenv("POS_PRINT_TIMEOUT", "3s")
	t.Setenv("POS_LOG_LEVEL", "debug")
	t.Setenv("POS_LOG_FORMAT", "text")

	c, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":9000", c.HTTPAddr)
	assert.False(t, c.AutoPrint)
	assert.Equal(t, "COM3", c.PrinterPort)
	assert.Equal(t, 3*time.Second, c.PrintTimeout)
	assert.Equal(t, logrus.DebugLevel, c.Logger().GetLevel())
}

func TestLoad_Invalid(t *testing.T) {
	t.Setenv("POS_RECEIPT_WIDTH", "8")
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("POS_RECEIPT_WIDTH", "32")
	t.Setenv("POS_PRINT_TIMEOUT", "soon")
	_, err = Load()
	assert.Error(t, err)

	t.Setenv("POS_PRINT_TIMEOUT", "1s")
	t.Setenv("POS_LOG_FORMAT", "xml")
	_, err = Load()
	assert.Error(t, err)
}
