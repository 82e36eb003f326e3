package vm_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/valp-lang/valp/pkg/vm"
)

// TestGCReclaimsUnreachableInstances exercises collectGarbage indirectly:
// under stress mode every allocation triggers a cycle, so a loop that
// keeps no reference to the instances it allocates must still run to
// completion without the collector freeing something still on the
// stack mid-construction.
func TestGCReclaimsUnreachableInstances(t *testing.T) {
	var out bytes.Buffer
	machine := vm.New(vm.WithStdout(&out), vm.WithStress(true))
	_, err := machine.Interpret(`
		class Box {
			def init(v) { self.v = v; }
		}
		var last = nil;
		for (var i = 0; i < 200; i = i + 1) {
			last = Box(i);
		}
		print last.v;
	`)
	require.NoError(t, err)
	assert.Equal(t, "199\n", out.String())
}

// TestGCPreservesOpenUpvaluesAcrossCycles runs closure creation under
// stress mode: allocating the inner closure and then its upvalue each
// trigger a full cycle while that closure is only half built (its
// upvalue slot still unset), and the captured value must be intact when
// the closure is called later through a global.
func TestGCPreservesOpenUpvaluesAcrossCycles(t *testing.T) {
	var out bytes.Buffer
	machine := vm.New(vm.WithStdout(&out), vm.WithStress(true))
	_, err := machine.Interpret(`
		fun makeAdder(n) {
			fun add(x) { return x + n; }
			return add;
		}
		var add5 = makeAdder(5);
		var garbage = "discard me";
		garbage = "discard me again";
		print add5(10);
	`)
	require.NoError(t, err)
	assert.Equal(t, "15\n", out.String())
}

// TestGCCollectsOnlyUnreachableStringsAfterScopeExit: strings local to
// a finished block become unreachable once their scope ends, and under
// stress mode the intern table must drop them without corrupting an
// identical string interned afterward.
func TestGCCollectsOnlyUnreachableStringsAfterScopeExit(t *testing.T) {
	var out bytes.Buffer
	machine := vm.New(vm.WithStdout(&out), vm.WithStress(true))
	_, err := machine.Interpret(`
		for (var i = 0; i < 100; i = i + 1) {
			var s = "temp" + "orary";
		}
		var keep = "temp" + "orary";
		print keep;
	`)
	require.NoError(t, err)
	assert.Equal(t, "temporary\n", out.String())
}
