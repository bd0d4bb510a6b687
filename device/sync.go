package device

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

const (
	defaultMaxConcurrent  = 4
	defaultPerCallTimeout = 5 * time.Second
)

// Result reports one sync batch. A per-voucher failure never aborts the
// batch; an unreachable device aborts before any detail is produced.
type Result struct {
	Total         int      `json:"total"`
	Synced        int      `json:"synced"`
	Failed        int      `json:"failed"`
	AlreadyExists int      `json:"already_exists"`
	Details       []Detail `json:"details"`
}

type Detail struct {
	Name   string `json:"name"`
	Status string `json:"status"` // created | exists | failed
	Error  string `json:"error,omitempty"`
}

// Synchronizer mirrors sellable vouchers onto one device.
type Synchronizer struct {
	client         *Client
	maxConcurrent  int
	perCallTimeout time.Duration
}

func NewSynchronizer(client *Client) *Synchronizer {
	return &Synchronizer{
		client:         client,
		maxConcurrent:  defaultMaxConcurrent,
		perCallTimeout: defaultPerCallTimeout,
	}
}

// Sync pushes the credentials that are missing on the device. Running it
// twice without intervening changes creates nothing the second time.
func (s *Synchronizer) Sync(ctx context.Context, creds []Credential) (*Result, error) {
	if err := s.client.Ping(ctx); err != nil {
		return nil, err
	}

	existing, err := s.client.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	onDevice := make(map[string]bool, len(existing))
	for _, u := range existing {
		onDevice[u.Name] = true
	}

	result := &Result{Total: len(creds)}
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.maxConcurrent)

	for _, cred := range creds {
		if onDevice[cred.Name] {
			mu.Lock()
			result.AlreadyExists++
			result.Details = append(result.Details, Detail{Name: cred.Name, Status: "exists"})
			mu.Unlock()
			continue
		}

		cred := cred
		g.Go(func() error {
			callCtx, cancel := context.WithTimeout(ctx, s.perCallTimeout)
			err := s.client.CreateUser(callCtx, cred)
			cancel()

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Failed++
				result.Details = append(result.Details, Detail{Name: cred.Name, Status: "failed", Error: err.Error()})
			} else {
				result.Synced++
				result.Details = append(result.Details, Detail{Name: cred.Name, Status: "created"})
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return result, nil
}
