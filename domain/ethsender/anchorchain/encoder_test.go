package anchorchain

import (
	"testing"

	"github.com/dagrollup/rollupcore/domain/rollup/model/externalapi"
)

func TestGasLimitScalesWithBlockRange(t *testing.T) {
	single := GasLimit(externalapi.SubmitCommit, 10, 10)
	double := GasLimit(externalapi.SubmitCommit, 10, 11)
	if double <= single {
		t.Fatalf("expected gas limit to grow with block range: single=%d double=%d", single, double)
	}
	if single == 0 {
		t.Fatal("gas limit must never be zero")
	}
}

func TestGasLimitPanicsOnUnknownKind(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on unknown kind")
		}
	}()
	GasLimit(externalapi.SubmitterOperationKind(99), 1, 1)
}

func TestEncodeCallCarriesBlockRangeAndPayload(t *testing.T) {
	payload := []byte("block-payload")
	encoded := EncodeCall(externalapi.SubmitProve, 5, 7, payload)

	if len(encoded) != 12+len(payload) {
		t.Fatalf("unexpected encoded length %d", len(encoded))
	}
	if string(encoded[len(encoded)-len(payload):]) != string(payload) {
		t.Fatal("expected payload to be appended verbatim at the tail")
	}
}
