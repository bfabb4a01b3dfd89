package memstore

import (
	"testing"

	"github.com/tatianab/text-engine/internal/store"
	"github.com/tatianab/text-engine/internal/store/storetest"
)

func TestConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store { return New() })
}
