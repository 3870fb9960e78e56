// Companion Core
// Copyright (c) 2026 The Companion Core Contributors.
// SPDX-License-Identifier: GPL-3.0-or-later
//
// This file is part of Companion Core.
//
// Companion Core is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Companion Core is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with Companion Core.  If not, see <http://www.gnu.org/licenses/>.

package audio

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNullOutput(t *testing.T) {
	t.Parallel()

	var out NullOutput
	_, err := out.Start(nil, 0)
	require.ErrorIs(t, err, ErrEmptyBuffer)

	r, err := out.Start(&Buffer{Samples: []float32{0}, SampleRate: 1}, 0)
	require.NoError(t, err)

	select {
	case <-r.Done():
		t.Fatal("null render finished before stop")
	default:
	}

	r.Stop()
	r.Stop()

	select {
	case <-r.Done():
	case <-time.After(time.Second):
		t.Fatal("null render did not finish after stop")
	}

	_, isPositioner := r.(Positioner)
	assert.False(t, isPositioner, "null renders use the caller's clock")
}

func TestMalgoOutput_RejectsEmptyBuffer(t *testing.T) {
	t.Parallel()

	out := NewMalgoOutput()
	_, err := out.Start(&Buffer{SampleRate: 24000}, 0)
	require.ErrorIs(t, err, ErrEmptyBuffer)
	out.Close()
}

func TestMalgoRenderPosition(t *testing.T) {
	t.Parallel()

	r := &malgoRender{offset: 2 * time.Second}
	assert.Equal(t, 2*time.Second, r.Position())

	r.frames.Store(outputSampleRate / 2)
	assert.Equal(t, 2500*time.Millisecond, r.Position())
}
