package slug

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func strPtr(s string) *string { return &s }

func TestNormalize(t *testing.T) {
	cases := map[string]string{
		"São Paulo Vaga":             "sao-paulo-vaga",
		"  Engenheiro(a) de Software ": "engenheiroa-de-software",
		"Go / Backend -- Sênior":     "go-backend----senior",
		"Ação!!!":                    "acao",
		"---dash---":                 "dash",
		"Multiple\t\n spaces":        "multiple-spaces",
		"ÉCOLE Über":                 "ecole-uber",
	}
	for in, want := range cases {
		assert.Equal(t, want, Normalize(in), "input %q", in)
	}
}

func TestGenerate_unique(t *testing.T) {
	assert.Equal(t, "sao-paulo-vaga", Generate(nil, "São Paulo Vaga", Set()))
}

func TestGenerate_collision(t *testing.T) {
	assert.Equal(t, "sao-paulo-vaga-1", Generate(nil, "São Paulo Vaga", Set("sao-paulo-vaga")))
	assert.Equal(t, "sao-paulo-vaga-3",
		Generate(nil, "São Paulo Vaga", Set("sao-paulo-vaga", "sao-paulo-vaga-1", "sao-paulo-vaga-2")))
}

func TestGenerate_skipsOnlyTakenSuffixes(t *testing.T) {
	assert.Equal(t, "dev-1", Generate(nil, "Dev", Set("dev", "dev-2")))
}

func TestGenerate_prefix(t *testing.T) {
	assert.Equal(t, "acme-backend-engineer", Generate(strPtr("acme"), "Backend Engineer", nil))
	assert.Equal(t, "acme-backend-engineer-1",
		Generate(strPtr("acme"), "Backend Engineer", Set("acme-backend-engineer")))
}

func TestGenerate_blankPrefixIgnored(t *testing.T) {
	for _, p := range []*string{nil, strPtr(""), strPtr("   "), strPtr("\t")} {
		assert.Equal(t, "backend-engineer", Generate(p, "Backend Engineer", nil))
	}
}

func TestGenerate_emptyTextFallsBack(t *testing.T) {
	assert.Equal(t, Fallback, Generate(nil, "!!!", nil))
	assert.Equal(t, "job-1", Generate(nil, "  ", Set("job")))
}

func TestGenerate_deterministic(t *testing.T) {
	existing := Set("vaga", "vaga-1")
	first := Generate(nil, "Vaga", existing)
	second := Generate(nil, "Vaga", existing)
	assert.Equal(t, first, second)
	assert.Equal(t, "vaga-2", first)
}

func TestBase(t *testing.T) {
	assert.Equal(t, "acme-dev", Base(strPtr("Acme"), "Dev"))
}
