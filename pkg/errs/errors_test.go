package errs

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestToHTTP(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("text: %w", ErrInvalidInput), http.StatusBadRequest},
		{fmt.Errorf("token: %w", ErrUnauthorized), http.StatusUnauthorized},
		{ErrNotFound, http.StatusNotFound},
		{fmt.Errorf("append: %w", ErrPersistence), http.StatusInternalServerError},
		{ErrUnavailable, http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, ToHTTP(tc.err), tc.err.Error())
	}
}
