// Vallum - Tenant Isolation and Access Mediation Layer
// Copyright 2026 The Vallum Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vallum-project/vallum

package authn

import (
	"context"
	"errors"
	"net/http"
	"sort"

	"github.com/vallum-project/vallum/internal/tenancy"
)

// Chain tries authenticators in priority order. ErrNoCredentials moves to
// the next authenticator; any other failure stops the chain, so a request
// that presented a bad token is rejected rather than quietly downgraded to
// another credential type.
type Chain struct {
	authenticators []Authenticator
}

// NewChain builds a chain sorted by Priority (lower first).
func NewChain(authenticators ...Authenticator) *Chain {
	c := &Chain{authenticators: make([]Authenticator, 0, len(authenticators))}
	c.authenticators = append(c.authenticators, authenticators...)
	sort.SliceStable(c.authenticators, func(i, j int) bool {
		return c.authenticators[i].Priority() < c.authenticators[j].Priority()
	})
	return c
}

// Authenticate walks the chain.
func (c *Chain) Authenticate(ctx context.Context, r *http.Request) (tenancy.Principal, error) {
	for _, a := range c.authenticators {
		p, err := a.Authenticate(ctx, r)
		if err == nil {
			return p, nil
		}
		if errors.Is(err, ErrNoCredentials) {
			continue
		}
		return tenancy.Principal{}, err
	}
	return tenancy.Principal{}, ErrNoCredentials
}

func (c *Chain) Name() string { return "chain" }

func (c *Chain) Priority() int { return 0 }
