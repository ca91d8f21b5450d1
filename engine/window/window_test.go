package window

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewEngineWindowClampsSize(t *testing.T) {
	w := newEngineWindow(WithWidth(50), WithHeight(9000), WithTitle("particles"))
	assert.Equal(t, "particles", w.title)
	assert.Equal(t, w.minWidth, w.Width())
	assert.Equal(t, w.maxHeight, w.Height())
}

func TestDragReportsDeltasOnlyWhileActive(t *testing.T) {
	w := newEngineWindow()
	var got [][2]float32
	w.SetDragCallback(func(dx, dy float32) {
		got = append(got, [2]float32{dx, dy})
	})

	w.pointerMove(10, 10)
	assert.Empty(t, got)

	w.pointerDown(10, 10)
	w.pointerMove(15, 8)
	w.pointerMove(15, 8)
	w.pointerMove(12, 9)
	w.pointerUp()
	w.pointerMove(40, 40)

	assert.Equal(t, [][2]float32{{5, -2}, {-3, 1}}, got)
}

func TestCloseWithoutPlatformWindow(t *testing.T) {
	w := newEngineWindow()
	assert.ErrorIs(t, w.Close(), ErrNotInitialized)
	assert.False(t, w.IsRunning())
}
