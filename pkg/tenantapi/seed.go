package tenantapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"

	"github.com/BezelexMarketing/asset-tracker-web-sub001/pkg/entity"
)

// Seed is a fixture of tenants, their devices and initial records.
//
//	tenants:
//	  - id: tenant-a
//	    devices:
//	      - client_id: device-1
//	        client_secret: change-me
//	    records:
//	      users:
//	        - id: srv-user-1
//	          data: {email: ada@example.com, display_name: Ada, role: field, active: true}
type Seed struct {
	Tenants []SeedTenant `yaml:"tenants"`
}

// SeedTenant holds the fixture of one tenant.
type SeedTenant struct {
	ID      string                  `yaml:"id"`
	Devices []SeedDevice            `yaml:"devices"`
	Records map[string][]SeedRecord `yaml:"records"`
}

// SeedDevice is a device credential in clear text; it is hashed when applied.
type SeedDevice struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
}

// SeedRecord is a record with an explicit server id.
type SeedRecord struct {
	ID   string         `yaml:"id"`
	Data map[string]any `yaml:"data"`
}

// SeedStore is the persistence needed to apply a Seed.
type SeedStore interface {
	SaveRecords(ctx context.Context, recs ...*Record) error
	CreateDevice(ctx context.Context, device *Device) error
}

// LoadSeed reads and checks a seed file.
func LoadSeed(path string) (*Seed, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}
	var seed Seed
	if err := yaml.Unmarshal(raw, &seed); err != nil {
		return nil, fmt.Errorf("failed to parse seed file: %w", err)
	}
	if err := seed.validate(); err != nil {
		return nil, err
	}
	return &seed, nil
}

func (s *Seed) validate() error {
	for _, tenant := range s.Tenants {
		if tenant.ID == "" {
			return errors.New("seed tenant without id")
		}
		for _, d := range tenant.Devices {
			if d.ClientID == "" || d.ClientSecret == "" {
				return fmt.Errorf("tenant %s: device needs client_id and client_secret", tenant.ID)
			}
		}
		for name, recs := range tenant.Records {
			if _, err := entity.ParseType(name); err != nil {
				return fmt.Errorf("tenant %s: %w", tenant.ID, err)
			}
			for _, r := range recs {
				if r.ID == "" || entity.IsTempID(r.ID) {
					return fmt.Errorf("tenant %s: %s record needs a server id", tenant.ID, name)
				}
			}
		}
	}
	return nil
}

// Records decodes the fixture records of every tenant. Records of one tenant are
// stamped now, now+1µs, ... in sync order so their updated_at values stay unique.
func (s *Seed) Records(now time.Time) ([]*Record, error) {
	var out []*Record
	for _, tenant := range s.Tenants {
		at := now.UTC().Truncate(time.Microsecond)
		for _, t := range entity.SyncOrder {
			for _, r := range tenant.Records[t.String()] {
				data, err := json.Marshal(r.Data)
				if err != nil {
					return nil, fmt.Errorf("%s %s: %w", t, r.ID, err)
				}
				payload, err := entity.DecodePayload(t, data)
				if err != nil {
					return nil, fmt.Errorf("%s %s: %w", t, r.ID, err)
				}
				out = append(out, &Record{
					TenantID:  tenant.ID,
					Type:      t,
					ID:        r.ID,
					Payload:   payload,
					UpdatedAt: at,
				})
				at = at.Add(time.Microsecond)
			}
		}
	}
	return out, nil
}

// Apply writes the devices and records of seed to store. Records are upserted, so
// applying the same seed twice leaves one copy of each.
func Apply(ctx context.Context, store SeedStore, seed *Seed, now time.Time) error {
	for _, tenant := range seed.Tenants {
		for _, d := range tenant.Devices {
			hash, err := bcrypt.GenerateFromPassword([]byte(d.ClientSecret), bcrypt.DefaultCost)
			if err != nil {
				return fmt.Errorf("failed to hash secret of %s: %w", d.ClientID, err)
			}
			if err := store.CreateDevice(ctx, &Device{
				ClientID:   d.ClientID,
				TenantID:   tenant.ID,
				SecretHash: string(hash),
				CreatedAt:  now.UTC(),
			}); err != nil {
				return fmt.Errorf("failed to store device %s: %w", d.ClientID, err)
			}
		}
	}

	recs, err := seed.Records(now)
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		return nil
	}
	return store.SaveRecords(ctx, recs...)
}
