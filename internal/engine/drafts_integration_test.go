//go:build integration

package engine

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"credentialing-backend/internal/config"
	"credentialing-backend/internal/logging"
	"credentialing-backend/internal/metadata"
	"credentialing-backend/internal/store"
	"credentialing-backend/internal/testutil/containers"
)

func newPostgresService(t *testing.T) (*DraftService, *store.Store) {
	t.Helper()
	ctx := context.Background()
	s, err := store.New(ctx, containers.NewPostgres(t))
	require.NoError(t, err)
	t.Cleanup(s.Close)

	reg := metadata.NewRegistry()
	require.NoError(t, s.Bootstrap(ctx, reg))

	svc, err := NewDraftService(s, reg, config.DraftsConfig{
		MaxItems:        50,
		TempIDThreshold: DefaultTempIDThreshold,
		TxTimeout:       10 * time.Second,
	}, WithLogger(logging.Discard()))
	require.NoError(t, err)
	return svc, s
}

func TestPostgres_ConcurrentFirstSavesShareOneDraft(t *testing.T) {
	svc, s := newPostgresService(t)
	alice := owner("alice")

	const n = 16
	var wg sync.WaitGroup
	ids := make([]int64, n)
	errs := make([]error, n)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := svc.SaveDraft(context.Background(), SaveRequest{Mode: ByOwner, Payload: map[string]any{
				"firstName": fmt.Sprintf("Alice %d", i),
			}}, alice)
			errs[i] = err
			if err == nil {
				ids[i] = res.EmployeeID
			}
		}()
	}
	wg.Wait()

	for i := range n {
		require.NoError(t, errs[i])
		assert.Equal(t, ids[0], ids[i])
	}
	assert.Equal(t, 1, countAll(t, s, "employees"))
}

func TestPostgres_RoundTrip(t *testing.T) {
	svc, s := newPostgresService(t)
	ctx := context.Background()
	alice := owner("alice")

	first := saveOwn(t, svc, alice, map[string]any{
		"firstName":         "Alice",
		"dob":               "1990-04-01T00:00:00Z",
		"consentAcceptedAt": "2025-01-02T03:04:05-05:00",
		"emergencyContacts": items(
			map[string]any{"name": "Bob", "phone": "555-0100", "isPrimary": true},
			map[string]any{"name": "Carol", "id": float64(1_700_000_000_000)},
		),
	})
	contacts := rowsOf(t, s, "employee_emergency_contacts", first.EmployeeID)
	require.Len(t, contacts, 2)

	// re-save with persisted ids updates in place
	second := saveOwn(t, svc, alice, map[string]any{
		"emergencyContacts": items(
			map[string]any{"id": float64(idOf(t, contacts[0])), "contactName": "Bobby"},
			map[string]any{"id": float64(idOf(t, contacts[1])), "contactName": "Carol"},
		),
	})
	assert.Equal(t, first.EmployeeID, second.EmployeeID)
	assert.Equal(t, 2, countAll(t, s, "employee_emergency_contacts"))

	draft, err := svc.LoadDraft(ctx, ByOwner, 0, alice)
	require.NoError(t, err)
	assert.Equal(t, "Alice", draft.Employee["firstName"])
	assert.Equal(t, "1990-04-01", draft.Employee["dateOfBirth"])
	assert.Equal(t, "Bobby", draft.Collections["emergencyContacts"][0]["contactName"])
	assert.Equal(t, true, draft.Collections["emergencyContacts"][0]["isPrimary"])

	_, err = svc.SaveDraft(ctx, SaveRequest{Mode: ByID, EmployeeID: first.EmployeeID, Payload: map[string]any{}}, owner("mallory"))
	var appErr *AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, 403, appErr.Status)
}
