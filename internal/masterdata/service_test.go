package masterdata

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/anatolia-crm/anatolia-crm/internal/shared"
	"github.com/anatolia-crm/anatolia-crm/internal/store"
)

func testService(t *testing.T) (*Service, *store.Store) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s, err := store.Open(filepath.Join(t.TempDir(), "document.json"), logger)
	require.NoError(t, err)
	return NewService(s, logger), s
}

func TestCreateNamedRejectsDuplicate(t *testing.T) {
	svc, _ := testService(t)
	ctx := context.Background()

	_, err := svc.CreateNamed(ctx, store.TableCustomers, FieldCustomerName, store.Row{FieldCustomerName: "Acme"})
	require.NoError(t, err)

	_, err = svc.CreateNamed(ctx, store.TableCustomers, FieldCustomerName, store.Row{FieldCustomerName: "ACME"})
	require.ErrorIs(t, err, shared.ErrDuplicate)

	_, err = svc.CreateNamed(ctx, store.TableCustomers, FieldCustomerName, store.Row{FieldCustomerName: " Acme "})
	require.ErrorIs(t, err, shared.ErrDuplicate)
}

func TestCreateNamedRequiresName(t *testing.T) {
	svc, _ := testService(t)
	_, err := svc.CreateNamed(context.Background(), store.TableRepresentatives, FieldRepresentativeName, store.Row{})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestUpdateNamedRejectsRenameOntoExisting(t *testing.T) {
	svc, _ := testService(t)
	ctx := context.Background()

	_, err := svc.CreateNamed(ctx, store.TableCustomers, FieldCustomerName, store.Row{FieldCustomerName: "Acme"})
	require.NoError(t, err)
	second, err := svc.CreateNamed(ctx, store.TableCustomers, FieldCustomerName, store.Row{FieldCustomerName: "Globex"})
	require.NoError(t, err)

	_, err = svc.UpdateNamed(ctx, store.TableCustomers, FieldCustomerName, second.ID(), store.Row{FieldCustomerName: "acme"})
	require.ErrorIs(t, err, shared.ErrDuplicate)
}

func TestUpdateNamedAllowsSameRowRename(t *testing.T) {
	svc, _ := testService(t)
	ctx := context.Background()

	row, err := svc.CreateNamed(ctx, store.TableCustomers, FieldCustomerName, store.Row{FieldCustomerName: "Acme"})
	require.NoError(t, err)

	updated, err := svc.UpdateNamed(ctx, store.TableCustomers, FieldCustomerName, row.ID(), store.Row{FieldCustomerName: "ACME"})
	require.NoError(t, err)
	require.Equal(t, "ACME", updated.String(FieldCustomerName))
}

func TestUpdateNamedWithoutNameSkipsCheck(t *testing.T) {
	svc, _ := testService(t)
	ctx := context.Background()

	row, err := svc.CreateNamed(ctx, store.TableCustomers, FieldCustomerName, store.Row{FieldCustomerName: "Acme"})
	require.NoError(t, err)

	updated, err := svc.UpdateNamed(ctx, store.TableCustomers, FieldCustomerName, row.ID(), store.Row{"Ülke": "TR"})
	require.NoError(t, err)
	require.Equal(t, "Acme", updated.String(FieldCustomerName))
	require.Equal(t, "TR", updated.String("Ülke"))
}
