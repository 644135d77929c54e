package backend

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFuseAssemblyTextMadd(t *testing.T) {
	src := "mul x9, x1, x2\nadd x10, x3, x9\nret\n"
	got := FuseAssemblyText(src)
	assert.Contains(t, got, "madd x10, x1, x2, x3")
	assert.NotContains(t, got, "mul x9")
}

func TestFuseAssemblyTextMsub(t *testing.T) {
	src := "mul x9, x1, x2\nsub x10, x3, x9\nret\n"
	got := FuseAssemblyText(src)
	assert.Contains(t, got, "msub x10, x1, x2, x3")
}

func TestFuseAssemblyTextSkipsWhenResultReused(t *testing.T) {
	src := "mul x9, x1, x2\nadd x10, x3, x9\nstr x9, [sp]\n"
	got := FuseAssemblyText(src)
	assert.Contains(t, got, "mul x9, x1, x2", "x9 is used again after the add, so fusion must not delete its definition")
}

func TestFuseAssemblyTextSkipsMixedClass(t *testing.T) {
	src := "mul x9, x1, x2\nfadd d10, d3, x9\n"
	got := FuseAssemblyText(src)
	assert.Contains(t, got, "mul x9, x1, x2")
}
