package synth

import "github.com/brianvoe/gofakeit/v7"

// Shared lists for synthetic workload naming.

var Namespaces = []string{
	"payments", "checkout", "inventory", "search", "batch", "ingest",
	"monitoring", "logging", "auth", "billing", "catalog", "recommendations",
}

var ServiceAccounts = []string{
	"api", "worker", "cron", "consumer", "scheduler", "exporter",
	"migrator", "gateway", "sidecar", "backfill",
}

var FailureMessages = []string{
	"permission denied",
	"invalid role name",
	"service account name not authorized",
	"namespace not authorized",
	"lookup failed: service account unauthorized; this could mean it has been deleted or recreated with a new token",
}

// RandomNamespace returns a random namespace from Namespaces
func RandomNamespace(f *gofakeit.Faker) string {
	return f.RandomString(Namespaces)
}

// RandomServiceAccount returns a random service account from ServiceAccounts
func RandomServiceAccount(f *gofakeit.Faker) string {
	return f.RandomString(ServiceAccounts)
}

// RandomFailure returns a random login error message
func RandomFailure(f *gofakeit.Faker) string {
	return f.RandomString(FailureMessages)
}
