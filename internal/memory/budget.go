package memory

import "github.com/roach88/zkabi/internal/abi"

// DefaultBudget is the number of payload units (bytes plus elements) a
// single decode call may read unless overridden with WithBudget.
const DefaultBudget uint64 = 1 << 20

// budget tracks the payload units consumed by one decode call.
//
// Each call owns its budget; it is never shared between calls, so the
// Decoder itself stays stateless.
type budget struct {
	limit uint64 // Maximum payload units for this call
	used  uint64 // Units charged so far
}

// charge reserves n units for the payload announced by a length header at
// addr. It fails with BudgetExceeded without reserving anything.
func (b *budget) charge(path []string, addr abi.Address, n uint64) error {
	if left := b.limit - b.used; n > left {
		err := abi.NewError(abi.CodeBudgetExceeded, path,
			"length header asks for %d units, %d of %d remain", n, left, b.limit)
		err.Address, err.HasAddress = addr, true
		return err
	}
	b.used += n
	return nil
}
