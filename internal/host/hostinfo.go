package host

import (
	"bufio"
	"io"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"sync"

	"power-bench/internal/logging"

	"github.com/sirupsen/logrus"
)

// HostInfo describes the machine the benchmark runs on. It is detected once
// per process.
type HostInfo struct {
	Hostname      string
	OSInfo        string
	KernelVersion string
	CPUVendor     string
	CPUModel      string
	TotalCores    int
}

var (
	globalHostInfo *HostInfo
	hostInfoOnce   sync.Once
)

// sysctl reads a kernel value on darwin.
var sysctl = func(name string) (string, error) {
	out, err := exec.Command("sysctl", "-n", name).Output()
	return strings.TrimSpace(string(out)), err
}

// GetHostInfo returns the host description, detecting it on first call.
func GetHostInfo() *HostInfo {
	hostInfoOnce.Do(func() {
		globalHostInfo = detect(runtime.GOOS)
		logging.GetLogger().WithFields(logrus.Fields{
			"hostname":  globalHostInfo.Hostname,
			"os":        globalHostInfo.OSInfo,
			"kernel":    globalHostInfo.KernelVersion,
			"cpu_model": globalHostInfo.CPUModel,
			"cores":     globalHostInfo.TotalCores,
		}).Debug("Host information detected")
	})
	return globalHostInfo
}

func detect(goos string) *HostInfo {
	info := &HostInfo{
		OSInfo:     goos + "/" + runtime.GOARCH,
		TotalCores: runtime.NumCPU(),
	}

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	info.Hostname = hostname

	switch goos {
	case "darwin":
		info.initDarwin()
	case "linux":
		info.initLinux()
	}

	if info.KernelVersion == "" {
		info.KernelVersion = "unknown"
	}
	if info.CPUVendor == "" {
		info.CPUVendor = "unknown"
	}
	if info.CPUModel == "" {
		info.CPUModel = "unknown"
	}
	return info
}

func (hi *HostInfo) initDarwin() {
	if v, err := sysctl("kern.osrelease"); err == nil {
		hi.KernelVersion = v
	}
	if v, err := sysctl("machdep.cpu.brand_string"); err == nil {
		hi.CPUModel = v
		if strings.HasPrefix(v, "Apple") {
			hi.CPUVendor = "Apple"
		}
	}
	if hi.CPUVendor == "" {
		if v, err := sysctl("machdep.cpu.vendor"); err == nil {
			hi.CPUVendor = v
		}
	}
}

func (hi *HostInfo) initLinux() {
	if data, err := os.ReadFile("/proc/version"); err == nil {
		version := strings.Fields(string(data))
		if len(version) >= 3 {
			hi.KernelVersion = version[2]
		}
	}

	file, err := os.Open("/proc/cpuinfo")
	if err != nil {
		return
	}
	defer file.Close()
	hi.parseCPUInfo(file)
}

func (hi *HostInfo) parseCPUInfo(r io.Reader) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		key, value, ok := strings.Cut(scanner.Text(), ":")
		if !ok {
			continue
		}
		key, value = strings.TrimSpace(key), strings.TrimSpace(value)
		switch key {
		case "vendor_id":
			if hi.CPUVendor == "" {
				hi.CPUVendor = value
			}
		case "model name":
			if hi.CPUModel == "" {
				hi.CPUModel = value
			}
		}
	}
}
