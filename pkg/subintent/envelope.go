package subintent

import (
	"github.com/uhyunpark/anthic/pkg/intent"
	"github.com/uhyunpark/anthic/pkg/ledger"
	"github.com/uhyunpark/anthic/pkg/model"
)

// ValidateSubintent validates the manifest carried by a subintent.
func ValidateSubintent(sub intent.Subintent) (LimitOrderDefinition, error) {
	return ValidateManifest(sub.Manifest)
}

// RecoverOrder validates a subintent that may carry an instamint prefix.
// With cfg set, a manifest opening with an account badge proof call is
// validated as instamint prefixed; anything else, including orders with a
// preamble before VerifyParent, goes through the plain validator.
func RecoverOrder(sub intent.Subintent, cfg *model.InstamintConfig) (*InstamintDefinition, LimitOrderDefinition, error) {
	ins := sub.Manifest.Instructions
	if cfg == nil || !hasInstamintPrefix(ins) {
		def, err := ValidateSubintent(sub)
		return nil, def, err
	}
	mint, def, err := ValidateWithInstamint(ins, *cfg)
	if err != nil {
		return nil, LimitOrderDefinition{}, err
	}
	return &mint, def, nil
}

func hasInstamintPrefix(ins []ledger.Instruction) bool {
	if len(ins) == 0 {
		return false
	}
	call, ok := ins[0].(ledger.CallMethod)
	return ok && call.Method == ledger.AccountCreateProofOfNonFungiblesIdent
}
