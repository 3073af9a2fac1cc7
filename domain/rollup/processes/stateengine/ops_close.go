package stateengine

import (
	"github.com/dagrollup/rollupcore/domain/rollup/model"
	"github.com/dagrollup/rollupcore/domain/rollup/model/externalapi"
)

// applyClose implements spec.md §4.2 Close by rejecting it
// unconditionally, without inspecting the account's balances or nonce:
// spec.md §9's Open Question (a) is resolved in
// favor of disabling it, since nothing downstream (pubdata, restorer)
// defines a stable meaning for an AccountId reused after deletion.
func (e *Engine) applyClose(c *externalapi.Close) (*model.OpSuccess, error) {
	return nil, externalapi.OperationDisabled
}
