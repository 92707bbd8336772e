package environment

import (
	"math/rand"

	"github.com/chaosmend/chaosmend-go/pkg/cerrors"
	"github.com/chaosmend/chaosmend-go/pkg/types"
)

// Supported test bed environments
const (
	EnvSimpleMicro    = "simple-micro"
	EnvOnlineBoutique = "online-boutique"
	EnvTrainTicket    = "train-ticket"
)

// Catalog lists the services of a test bed that are eligible chaos targets.
// Disk faults need services with real write traffic, so they keep their own
// narrower list.
type Catalog struct {
	Services       []string
	DiskIOServices []string
}

var catalogs = map[string]Catalog{
	EnvSimpleMicro: {
		Services:       []string{"frontend", "backend", "mongodb"},
		DiskIOServices: []string{"mongodb"},
	},
	EnvOnlineBoutique: {
		Services: []string{
			"adservice", "cartservice", "checkoutservice", "currencyservice",
			"emailservice", "frontend", "paymentservice", "productcatalogservice",
			"recommendationservice", "shippingservice",
		},
		DiskIOServices: []string{"redis-cart"},
	},
	EnvTrainTicket: {
		Services: []string{
			"ts-auth-service", "ts-order-service", "ts-route-service",
			"ts-station-service", "ts-train-service", "ts-travel-service",
			"ts-ui-dashboard", "ts-user-service",
		},
		DiskIOServices: []string{"ts-order-mongo", "ts-user-mongo"},
	},
}

// Lookup returns the catalog of the named environment
func Lookup(env string) (Catalog, error) {
	catalog, ok := catalogs[env]
	if !ok {
		return Catalog{}, cerrors.Generic{Phase: "environment", Reason: "unknown runtime environment: " + env}
	}
	return catalog, nil
}

// RandomFailure picks one of the supported failure kinds uniformly
func RandomFailure() types.FailureKind {
	kinds := types.FailureKinds()
	return kinds[rand.Intn(len(kinds))]
}

// RandomService picks an eligible target service for the failure kind
func RandomService(env string, kind types.FailureKind) (string, error) {
	catalog, err := Lookup(env)
	if err != nil {
		return "", err
	}
	pool := catalog.Services
	if kind == types.DiskIO && len(catalog.DiskIOServices) > 0 {
		pool = catalog.DiskIOServices
	}
	if len(pool) == 0 {
		return "", cerrors.TargetSelection{Reason: "environment has no eligible services for kind " + string(kind)}
	}
	return pool[rand.Intn(len(pool))], nil
}
