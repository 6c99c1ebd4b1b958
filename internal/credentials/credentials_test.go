package credentials

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDeriveSecret(t *testing.T) {
	testCases := []struct {
		in     Credentials
		expect string
		err    error
	}{
		{in: Credentials{NationalID: "123.456.789-09"}, expect: "123456789"},
		{in: Credentials{NationalID: "12345678909"}, expect: "123456789"},
		{in: Credentials{NationalID: "1234", SecretOverride: "hunter2"}, expect: "hunter2"},
		{in: Credentials{NationalID: "1234-5"}, err: ErrNoSecret},
		{in: Credentials{}, err: ErrNoSecret},
		// only ascii digits count, other scripts' digits are skipped
		{in: Credentials{NationalID: "١٢٣123.456.789-09"}, expect: "123456789"},
		{in: Credentials{NationalID: "١٢٣٤٥٦٧٨٩"}, err: ErrNoSecret},
	}
	for _, test := range testCases {
		secret, err := DeriveSecret(test.in)
		if test.err != nil {
			require.ErrorIs(t, err, test.err)
			continue
		}
		require.NoError(t, err)
		require.Equal(t, test.expect, secret)
	}
}
