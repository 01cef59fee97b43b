package host

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCPUInfo(t *testing.T) {
	hi := &HostInfo{}
	hi.parseCPUInfo(strings.NewReader(`processor	: 0
vendor_id	: GenuineIntel
model name	: Intel(R) Xeon(R) CPU E5-2680 v4 @ 2.40GHz

processor	: 1
vendor_id	: GenuineIntel
model name	: something else
`))
	assert.Equal(t, "GenuineIntel", hi.CPUVendor)
	assert.Equal(t, "Intel(R) Xeon(R) CPU E5-2680 v4 @ 2.40GHz", hi.CPUModel)
}

func TestDetectDarwinUsesSysctl(t *testing.T) {
	orig := sysctl
	defer func() { sysctl = orig }()
	sysctl = func(name string) (string, error) {
		switch name {
		case "kern.osrelease":
			return "23.4.0", nil
		case "machdep.cpu.brand_string":
			return "Apple M2 Pro", nil
		}
		return "", errors.New("unknown oid")
	}

	hi := detect("darwin")
	assert.Equal(t, "23.4.0", hi.KernelVersion)
	assert.Equal(t, "Apple M2 Pro", hi.CPUModel)
	assert.Equal(t, "Apple", hi.CPUVendor)
	assert.True(t, strings.HasPrefix(hi.OSInfo, "darwin/"))
}

func TestDetectFallsBackToUnknown(t *testing.T) {
	hi := detect("plan9")
	assert.Equal(t, "unknown", hi.KernelVersion)
	assert.Equal(t, "unknown", hi.CPUModel)
	assert.Equal(t, "unknown", hi.CPUVendor)
	assert.Positive(t, hi.TotalCores)
}

func TestGetHostInfoIsCached(t *testing.T) {
	first := GetHostInfo()
	require.NotNil(t, first)
	assert.Same(t, first, GetHostInfo())
	assert.NotEmpty(t, first.Hostname)
}
