package main

import (
	"context"
	"strings"

	"github.com/wilhg/locale/pkg/errmodel"
	"github.com/wilhg/locale/pkg/store"
	"github.com/wilhg/locale/pkg/store/boltstore"
	"github.com/wilhg/locale/pkg/store/entstore"
)

const boltPrefix = "bolt:"

// openStore selects a backend from the DSN: bolt:<path> for an embedded
// file, anything else is handed to entstore.
func openStore(ctx context.Context, dsn string) (store.EventStore, error) {
	if path, ok := strings.CutPrefix(dsn, boltPrefix); ok {
		st, err := boltstore.Open(path)
		if err != nil {
			return nil, errmodel.Persistence("store_unavailable", "cannot open bolt store", map[string]any{"path": path}, err)
		}
		return st, nil
	}
	st, err := entstore.Open(ctx, dsn)
	if err != nil {
		return nil, errmodel.Persistence("store_unavailable", "cannot open database", nil, err)
	}
	return st, nil
}

// migrate prepares the schema of the store behind dsn.
func migrate(ctx context.Context, dsn string) error {
	st, err := openStore(ctx, dsn)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()
	if m, ok := st.(interface{ Migrate(context.Context) error }); ok {
		if err := m.Migrate(ctx); err != nil {
			return errmodel.Persistence("migrate_failed", "cannot create schema", nil, err)
		}
	}
	return nil
}

func configMissing(keys ...string) error {
	return errmodel.Config("missing_settings", "required settings are not set", map[string]any{"missing": keys})
}
