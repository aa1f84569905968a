package keys

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
)

func TestBuild(t *testing.T) {
	t.Run("single part", func(t *testing.T) {
		assert.Equal(t, "meraki_network:N_123", Build("meraki_network", "N_123"))
	})

	t.Run("mixed string and integer parts", func(t *testing.T) {
		assert.Equal(t, "meraki_vlan:N_1:20", Build("meraki_vlan", "N_1", 20))
	})

	t.Run("split parts never collide with a joined part", func(t *testing.T) {
		assert.NotEqual(t, Build("t", "net1", "5"), Build("t", "net15"))
		assert.NotEqual(t, Build("t", "a:b"), Build("t", "a", "b"))
		assert.NotEqual(t, Build("t", `a\`, "b"), Build("t", `a\:b`))
	})

	t.Run("no normalization is applied", func(t *testing.T) {
		assert.NotEqual(t, Build("t", "ABC"), Build("t", "abc"))
		assert.NotEqual(t, Build("t", " abc"), Build("t", "abc"))
	})

	t.Run("no parts", func(t *testing.T) {
		assert.Equal(t, "t", Build("t"))
	})
}

func TestBuildProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("same inputs produce the same key", prop.ForAll(
		func(typeTag, a, b string) bool {
			return Build(typeTag, a, b) == Build(typeTag, a, b)
		},
		gen.AlphaString(),
		gen.AnyString(),
		gen.AnyString(),
	))

	properties.Property("different two-part inputs produce different keys", prop.ForAll(
		func(a1, b1, a2, b2 string) bool {
			if a1 == a2 && b1 == b2 {
				return true
			}
			return Build("t", a1, b1) != Build("t", a2, b2)
		},
		gen.OneConstOf("", "a", "a:", ":b", `a\`, "net1", "net15", "5"),
		gen.OneConstOf("", "b", ":", `\`, "5", "15"),
		gen.OneConstOf("", "a", "a:", ":b", `a\`, "net1", "net15", "5"),
		gen.OneConstOf("", "b", ":", `\`, "5", "15"),
	))

	properties.TestingRun(t)
}
