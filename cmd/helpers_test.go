package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/provider-verify/internal/config"
	"github.com/sells-group/provider-verify/internal/model"
	"github.com/sells-group/provider-verify/internal/store"
)

func TestParseCountry(t *testing.T) {
	for input, want := range map[string]model.Country{
		"US":  model.CountryUS,
		"us":  model.CountryUS,
		" in": model.CountryIN,
		"IN":  model.CountryIN,
	} {
		got, err := parseCountry(input)
		require.NoError(t, err, input)
		assert.Equal(t, want, got, input)
	}

	_, err := parseCountry("UK")
	assert.Error(t, err)
	_, err = parseCountry("")
	assert.Error(t, err)
}

func TestLoadUserData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "provider.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"name": "Jane Doe",
		"phone": "(505) 555-0100",
		"npi_number": "1234567893"
	}`), 0600))

	user, err := loadUserData(path)
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe", user.Name)
	assert.Equal(t, "(505) 555-0100", user.Phone)
	assert.Equal(t, "1234567893", user.NPINumber)
}

func TestLoadUserData_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "provider.json")
	require.NoError(t, os.WriteFile(path, []byte(`{not json`), 0600))

	_, err := loadUserData(path)
	assert.Error(t, err)

	_, err = loadUserData(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestInitStore(t *testing.T) {
	orig := cfg
	t.Cleanup(func() { cfg = orig })

	cfg = &config.Config{Store: config.StoreConfig{Driver: "memory"}}
	st, err := initStore(context.Background())
	require.NoError(t, err)
	_, ok := st.(*store.MemoryStore)
	assert.True(t, ok)

	cfg = &config.Config{Store: config.StoreConfig{
		Driver:      "sqlite",
		DatabaseURL: filepath.Join(t.TempDir(), "test.db"),
	}}
	st, err = initStore(context.Background())
	require.NoError(t, err)
	require.NoError(t, st.Migrate(context.Background()))
	require.NoError(t, st.Close())

	cfg = &config.Config{Store: config.StoreConfig{Driver: "oracle"}}
	_, err = initStore(context.Background())
	assert.Error(t, err)
}

func TestCLICaller(t *testing.T) {
	orig := cfg
	t.Cleanup(func() { cfg = orig })

	cfg = &config.Config{
		Store: config.StoreConfig{Driver: "memory"},
		User:  "blake",
	}
	caller, err := cliCaller()
	require.NoError(t, err)
	assert.Equal(t, "blake", caller.UserID)

	cfg.User = ""
	_, err = cliCaller()
	assert.Error(t, err)
}
