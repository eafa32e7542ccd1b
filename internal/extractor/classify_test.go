package extractor

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClassifyRawBody(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		body string
		want FaultKind
	}{
		{"security check html", "<html>Security check failed. Please retry.</html>", FaultSecurityCheck},
		{"not found russian", "Договор не найден", FaultNotFound},
		{"not found english", "contract not found", FaultNotFound},
		{"server error russian", "Внутренняя ошибка сервера", FaultServer},
		{"server error english", "internal server error", FaultServer},
		{"garbage", "<html><body>???</body></html>", FaultUnclassified},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			fault := ClassifyRawBody(tc.body)
			require.Equal(t, tc.want, fault.Kind)
			require.Equal(t, tc.body, fault.Raw)
		})
	}
}

func TestContractFault_IsNotParseSentinel(t *testing.T) {
	t.Parallel()

	fault := &ContractFault{Kind: FaultSecurityCheck, Raw: "security check failed"}
	require.NotErrorIs(t, fault, ErrParse)
	require.Contains(t, fault.Error(), "security")
}
