package tenantapi

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/BezelexMarketing/asset-tracker-web-sub001/pkg/entity"
)

const seedYAML = `
tenants:
  - id: tenant-a
    devices:
      - client_id: device-1
        client_secret: s3cret
    records:
      items:
        - id: srv-item-1
          data:
            name: Drill
            status: available
            purchase_value: "129.99"
      users:
        - id: srv-user-1
          data:
            email: ada@example.com
            display_name: Ada
            role: field
            active: true
`

type memSeedStore struct {
	records []*Record
	devices []*Device
}

func (m *memSeedStore) SaveRecords(_ context.Context, recs ...*Record) error {
	m.records = append(m.records, recs...)
	return nil
}

func (m *memSeedStore) CreateDevice(_ context.Context, d *Device) error {
	m.devices = append(m.devices, d)
	return nil
}

func writeSeed(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "seed.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("WriteFile() failed: %v", err)
	}
	return path
}

func TestLoadSeed_AndApply(t *testing.T) {
	seed, err := LoadSeed(writeSeed(t, seedYAML))
	if err != nil {
		t.Fatalf("LoadSeed() failed: %v", err)
	}

	now := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	store := &memSeedStore{}
	if err := Apply(context.Background(), store, seed, now); err != nil {
		t.Fatalf("Apply() failed: %v", err)
	}

	if len(store.devices) != 1 {
		t.Fatalf("expected 1 device, got %d", len(store.devices))
	}
	d := store.devices[0]
	if d.TenantID != "tenant-a" || d.SecretHash == "s3cret" {
		t.Fatalf("unexpected device: %+v", d)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(d.SecretHash), []byte("s3cret")); err != nil {
		t.Fatalf("stored hash does not match secret: %v", err)
	}

	if len(store.records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(store.records))
	}
	// users sort before items regardless of file order
	if store.records[0].Type != entity.Users || store.records[1].Type != entity.Items {
		t.Fatalf("records not in sync order: %s, %s", store.records[0].Type, store.records[1].Type)
	}
	if !store.records[1].UpdatedAt.After(store.records[0].UpdatedAt) {
		t.Fatal("expected unique increasing updated_at values")
	}
	item := store.records[1].Payload.(*entity.ItemPayload)
	if item.Name != "Drill" || item.PurchaseValue.String() != "129.99" {
		t.Fatalf("unexpected item payload: %+v", item)
	}
}

func TestLoadSeed_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{
			name:    "unknown entity type",
			content: "tenants:\n  - id: t\n    records:\n      widgets:\n        - id: srv-1\n",
			want:    "unknown entity type",
		},
		{
			name:    "temporary id",
			content: "tenants:\n  - id: t\n    records:\n      users:\n        - id: tmp-1\n",
			want:    "needs a server id",
		},
		{
			name:    "device without secret",
			content: "tenants:\n  - id: t\n    devices:\n      - client_id: d\n",
			want:    "client_secret",
		},
		{
			name:    "tenant without id",
			content: "tenants:\n  - devices: []\n",
			want:    "without id",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadSeed(writeSeed(t, tt.content))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestRecord_EnvelopeOfTombstoneHasNoData(t *testing.T) {
	rec := New("tenant-a", &entity.UserPayload{Email: "a@b.c", DisplayName: "A", Role: "field"}, time.Now())
	if !strings.HasPrefix(rec.ID, ServerIDPrefix) {
		t.Fatalf("expected server id, got %s", rec.ID)
	}
	rec.Deleted = true

	env, err := rec.Envelope()
	if err != nil {
		t.Fatalf("Envelope() failed: %v", err)
	}
	if !env.Deleted || len(env.Data) != 0 {
		t.Fatalf("unexpected tombstone envelope: %+v", env)
	}
}
