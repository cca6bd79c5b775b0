package validate

import (
	"sync"

	"github.com/dlclark/regexp2"
	"golang.org/x/sync/singleflight"
)

// PropertyOracle answers whether the host regex engine supports a Unicode
// property name.
type PropertyOracle interface {
	IsSupported(property string) bool
}

// EngineOracle asks by compiling the property in regexp2 and checking for a
// compile-time error.
type EngineOracle struct{}

func (EngineOracle) IsSupported(property string) bool {
	_, err := regexp2.Compile(`\p{`+property+`}`, regexp2.None)
	return err == nil
}

// propertyCache memoizes oracle answers process-wide, keyed by property
// name. Writes are once per key; singleflight collapses concurrent misses
// so the oracle is asked exactly once per distinct name.
var (
	propertyCache sync.Map
	propertyGroup singleflight.Group
)

func propertySupported(oracle PropertyOracle, property string) bool {
	if v, ok := propertyCache.Load(property); ok {
		return v.(bool)
	}
	v, _, _ := propertyGroup.Do(property, func() (any, error) {
		if cached, ok := propertyCache.Load(property); ok {
			return cached, nil
		}
		supported := oracle.IsSupported(property)
		propertyCache.Store(property, supported)
		return supported, nil
	})
	return v.(bool)
}
