// Package gateway holds the hosted checkout integrations used to collect invoice
// payments: Paystack over its REST API, Stripe and Xendit through their SDKs.
package gateway

import (
	"net/http"
	"time"

	"github.com/invoiceflow/invoiceflow-backend-go/internal/config"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/domain/payment"
)

const (
	Paystack = "paystack"
	Stripe   = "stripe"
	Xendit   = "xendit"
)

var known = map[string]bool{Paystack: true, Stripe: true, Xendit: true}

// Registry resolves a provider name to its configured Gateway
type Registry struct {
	gateways map[string]payment.Gateway
}

// NewRegistry registers the given gateways, skipping nil entries
func NewRegistry(gateways ...payment.Gateway) *Registry {
	r := &Registry{gateways: make(map[string]payment.Gateway)}
	for _, g := range gateways {
		if g != nil {
			r.gateways[g.Name()] = g
		}
	}
	return r
}

// NewFromConfig builds every gateway that has credentials configured
func NewFromConfig(cfg *config.Config) *Registry {
	client := &http.Client{Timeout: 30 * time.Second}

	var gateways []payment.Gateway
	if cfg.Paystack.SecretKey != "" {
		gateways = append(gateways, NewPaystack(cfg.Paystack, client))
	}
	if cfg.Stripe.SecretKey != "" {
		gateways = append(gateways, NewStripe(cfg.Stripe))
	}
	if cfg.Xendit.SecretKey != "" {
		gateways = append(gateways, NewXendit(cfg.Xendit))
	}
	return NewRegistry(gateways...)
}

func (r *Registry) Get(name string) (payment.Gateway, error) {
	if !known[name] {
		return nil, payment.ErrUnknownProvider
	}
	g, ok := r.gateways[name]
	if !ok {
		return nil, payment.ErrProviderNotConfigured
	}
	return g, nil
}

// Names lists the configured providers
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.gateways))
	for _, n := range []string{Paystack, Stripe, Xendit} {
		if _, ok := r.gateways[n]; ok {
			names = append(names, n)
		}
	}
	return names
}
