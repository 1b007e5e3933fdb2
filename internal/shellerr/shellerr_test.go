package shellerr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_errorKindPredicates_matchOnlyTheirOwnConstructor(t *testing.T) {
	errs := []error{
		UnexpectedToken("go", []string{"stop"}),
		MalformedIDL("nav/move", errors.New("bad json")),
		UnresolvedReference("loop"),
		BusError(errors.New("disconnected")),
		CacheCorruption("/tmp/cache.json", errors.New("eof")),
	}
	preds := []func(error) bool{
		IsUnexpectedToken, IsMalformedIDL, IsUnresolvedReference, IsBusError, IsCacheCorruption,
	}

	for i, err := range errs {
		for j, pred := range preds {
			if i == j {
				assert.True(t, pred(err), "expected predicate %d to match error %d", j, i)
			} else {
				assert.False(t, pred(err), "expected predicate %d not to match error %d", j, i)
			}
		}
	}
}

func Test_MalformedIDL_unwrapsToCause(t *testing.T) {
	cause := errors.New("boom")
	err := MalformedIDL("t", cause)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "boom")
	assert.Contains(t, err.Error(), `"t"`)
}

func Test_BusError_withNilCauseStillFormatsCleanly(t *testing.T) {
	err := BusError(nil)
	assert.Equal(t, "bus error", err.Error())
}

func Test_plainErrorNeverMatchesAnyPredicate(t *testing.T) {
	plain := errors.New("just an error")
	assert.False(t, IsBusError(plain))
	assert.False(t, IsMalformedIDL(plain))
}
