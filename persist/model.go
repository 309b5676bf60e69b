package persist

import "context"

// Projection is the persisted subset of the session: identity facts only.
// The credential string, the loading flag, and the last error are
// deliberately not representable here.
type Projection struct {
	UserID        string
	Email         string
	Name          string
	Extra         map[string]string
	Authenticated bool

	// SavedAt is the unix time of the write, carried for diagnostics.
	SavedAt int64
}

// Empty reports whether p describes "no prior session".
func (p Projection) Empty() bool {
	return p.UserID == "" && !p.Authenticated
}

func (p Projection) cloneExtra() map[string]string {
	if p.Extra == nil {
		return nil
	}
	out := make(map[string]string, len(p.Extra))
	for k, v := range p.Extra {
		out[k] = v
	}
	return out
}

// Store is the durable-storage contract. Save is last-write-wins with no
// ordering guarantee beyond program order of calls. Load returns the last
// saved projection, or ok=false when none exists or the stored blob fails
// to parse. Clear removes any stored projection and is idempotent.
type Store interface {
	Save(ctx context.Context, p Projection) error
	Load(ctx context.Context) (Projection, bool, error)
	Clear(ctx context.Context) error
}
