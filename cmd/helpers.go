package main

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/provider-verify/internal/auth"
	"github.com/sells-group/provider-verify/internal/model"
	"github.com/sells-group/provider-verify/internal/registry"
	"github.com/sells-group/provider-verify/internal/service"
	"github.com/sells-group/provider-verify/internal/store"
)

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "provider-verify.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	case "memory":
		return store.NewMemory(), nil
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

func newService(st store.Store) *service.Service {
	client := registry.NewClient(registry.ClientOptions{
		Timeout:      time.Duration(cfg.Registry.TimeoutSecs) * time.Second,
		RateLimiters: registry.DefaultRateLimiters(),
	})
	return service.New(st, cfg.Cache.TTL(),
		registry.NewUS(client, cfg.Registry.USBaseURL),
		registry.NewIN(client, cfg.Registry.INBaseURL, cfg.Registry.INAPIKey),
	)
}

// cliCaller is the identity CLI operations run as. There is no bearer token
// on the command line; the configured user name stands in for it.
func cliCaller() (*auth.Identity, error) {
	if err := cfg.Validate("cli"); err != nil {
		return nil, err
	}
	return &auth.Identity{UserID: cfg.User}, nil
}

func parseCountry(s string) (model.Country, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "US":
		return model.CountryUS, nil
	case "IN":
		return model.CountryIN, nil
	default:
		return "", eris.Errorf("unsupported country %q (want US or IN)", s)
	}
}

// loadUserData reads caller-supplied provider data from a JSON file,
// or stdin when path is "-".
func loadUserData(path string) (model.UserProviderData, error) {
	var user model.UserProviderData
	var data []byte
	var err error

	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return user, eris.Wrap(err, "read provider data")
	}
	if err := json.Unmarshal(data, &user); err != nil {
		return user, eris.Wrap(err, "parse provider data")
	}
	return user, nil
}

// printJSON writes v to stdout, indented.
func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
