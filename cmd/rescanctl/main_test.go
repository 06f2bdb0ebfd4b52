package main

import (
	"bytes"
	"encoding/json"
	"net"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rescan/internal/service"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestRescanctl_AwardAndVerify(t *testing.T) {
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("SQLITE_PATH", filepath.Join(t.TempDir(), "ctl.db"))

	out, err := run(t, "migrate", "up")
	require.NoError(t, err)
	assert.Contains(t, out, "migrations applied")

	out, err = run(t, "migrate", "version")
	require.NoError(t, err)
	assert.Contains(t, out, "version 1")

	out, err = run(t, "ledger", "award", "42 Wallaby Way", "--material", "PET", "--recyclable", "--confidence", "0.9")
	require.NoError(t, err)
	var receipt service.ScanReceipt
	require.NoError(t, json.Unmarshal([]byte(out), &receipt))
	assert.Equal(t, int64(100), receipt.Address.PointsTotal)

	out, err = run(t, "ledger", "verify", "42 wallaby way")
	require.NoError(t, err)
	var report service.ConsistencyReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.True(t, report.Consistent)
	assert.Equal(t, int64(1), report.ScanCount)

	out, err = run(t, "address", "scans", "42 Wallaby Way", "--limit", "5")
	require.NoError(t, err)
	assert.Contains(t, out, `"materialType": "PET"`)
	assert.Contains(t, out, `"address": "42 wallaby way"`)

	_, err = run(t, "address", "get", "nowhere")
	assert.Error(t, err)
}

func TestRescanctl_AwardInvalidatesCache(t *testing.T) {
	mr := miniredis.RunT(t)
	host, port, err := net.SplitHostPort(mr.Addr())
	require.NoError(t, err)

	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("SQLITE_PATH", filepath.Join(t.TempDir(), "ctl.db"))
	t.Setenv("REDIS_ENABLED", "true")
	t.Setenv("REDIS_HOST", host)
	t.Setenv("REDIS_PORT", port)

	_, err = run(t, "migrate", "up")
	require.NoError(t, err)

	// an entry the API server cached before the award
	require.NoError(t, mr.Set("address:3 mill lane", `{"address":"3 mill lane","pointsTotal":0}`))

	_, err = run(t, "ledger", "award", "3 Mill Lane", "--material", "glass", "--recyclable")
	require.NoError(t, err)

	assert.False(t, mr.Exists("address:3 mill lane"))
	gen, err := mr.Get("address_gen:3 mill lane")
	require.NoError(t, err)
	assert.Equal(t, "1", gen)
}
