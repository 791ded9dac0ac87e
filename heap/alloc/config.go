package alloc

import (
	"fmt"
	"strings"

	"github.com/joshuapare/kheap/internal/format"
)

// MaxPools is the largest number of accelerator size classes.
const MaxPools = 8

// Config selects the accelerator's size classes.
type Config struct {
	// Name for this configuration (for reports and benchmarks)
	Name string

	// PoolClasses are the ascending capacities of the one-shot pools.
	// Empty disables the accelerator entirely.
	PoolClasses []uint64
}

// Predefined configurations.
var (
	// ConfigKernel: eight classes from 32 B to 512 KiB, for the handful of
	// fixed-size objects a kernel allocates during boot.
	ConfigKernel = Config{
		Name: "Kernel",
		PoolClasses: []uint64{
			32, 128, 512, 2 << 10,
			8 << 10, 32 << 10, 128 << 10, 512 << 10,
		},
	}

	// ConfigSmallPools: only the small classes, keeps pool storage under 3 KiB.
	ConfigSmallPools = Config{
		Name:        "SmallPools",
		PoolClasses: []uint64{32, 128, 512, 2 << 10},
	}

	// ConfigNoPools: pure split/coalesce engine.
	ConfigNoPools = Config{
		Name: "NoPools",
	}

	// DefaultConfig is used when New is given nil.
	DefaultConfig = ConfigKernel
)

// Presets returns the predefined configurations, default first.
func Presets() []Config {
	return []Config{ConfigKernel, ConfigSmallPools, ConfigNoPools}
}

// ConfigByName finds a preset by case-insensitive name.
func ConfigByName(name string) (Config, error) {
	for _, c := range Presets() {
		if strings.EqualFold(c.Name, name) {
			return c, nil
		}
	}
	return Config{}, fmt.Errorf("%w: unknown preset %q", ErrBadConfig, name)
}

// Validate checks that classes are ascending powers of two and that there
// are at most MaxPools of them.
func (c Config) Validate() error {
	if len(c.PoolClasses) > MaxPools {
		return fmt.Errorf("%w: %d pool classes, at most %d", ErrBadConfig, len(c.PoolClasses), MaxPools)
	}
	var prev uint64
	for i, sz := range c.PoolClasses {
		if !format.IsPowerOfTwo(sz) {
			return fmt.Errorf("%w: pool class %d (%d bytes) is not a power of two", ErrBadConfig, i, sz)
		}
		if sz <= prev {
			return fmt.Errorf("%w: pool classes must ascend (%d after %d)", ErrBadConfig, sz, prev)
		}
		prev = sz
	}
	return nil
}

// PoolBytes returns the total capacity of the configured pools.
func (c Config) PoolBytes() uint64 {
	var n uint64
	for _, sz := range c.PoolClasses {
		n += sz
	}
	return n
}

// String returns the configuration name.
func (c Config) String() string {
	return c.Name
}
