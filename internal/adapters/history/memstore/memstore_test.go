package memstore_test

import (
	"testing"

	"github.com/okian/marksense/internal/adapters/history"
	"github.com/okian/marksense/internal/adapters/history/historytest"
	"github.com/okian/marksense/internal/adapters/history/memstore"
)

func TestMemstoreConformance(t *testing.T) {
	historytest.RunBackendSuite(t, func(t *testing.T) history.Backend {
		return memstore.New()
	})
}
