package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/iliyamo/peer-support/internal/repository"
)

func TestStoreErrMapping(t *testing.T) {
	cases := []struct {
		in   error
		msg  string
		kind Kind
		want string
	}{
		{repository.ErrNotFound, "", NotFound, "not found"},
		{repository.ErrNotFound, "user not found", NotFound, "user not found"},
		{fmt.Errorf("get: %w", repository.ErrEmailExists), "", Conflict, "email is already registered"},
		{repository.ErrConflict, "", Conflict, "conflicting update"},
		{context.DeadlineExceeded, "", Timeout, "data store timed out"},
		{assert.AnError, "", Internal, "internal server error"},
	}
	for _, tc := range cases {
		err := storeErr(tc.in, tc.msg)
		assert.Equal(t, tc.kind, KindOf(err), "%v", tc.in)
		assert.Equal(t, tc.want, PublicMessage(err), "%v", tc.in)
	}
	assert.NoError(t, storeErr(nil, ""))
}
