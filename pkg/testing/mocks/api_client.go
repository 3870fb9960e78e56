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

package mocks

import (
	"context"
	"encoding/json"
	"time"

	"github.com/refugium/companion-core/pkg/api/models"
	"github.com/stretchr/testify/mock"
)

// MockAPIClient is a mock implementation of client.APIClient for testing.
type MockAPIClient struct {
	mock.Mock
}

func NewMockAPIClient() *MockAPIClient {
	return &MockAPIClient{}
}

func (m *MockAPIClient) Call(ctx context.Context, method, params string) (string, error) {
	args := m.Called(ctx, method, params)
	return args.String(0), args.Error(1) //nolint:wrapcheck // mock passthrough
}

func (m *MockAPIClient) WaitNotification(
	ctx context.Context,
	timeout time.Duration,
	notificationType string,
) (string, error) {
	args := m.Called(ctx, timeout, notificationType)
	return args.String(0), args.Error(1) //nolint:wrapcheck // mock passthrough
}

// SetupProfileResponse configures the mock to return a profile response.
func (m *MockAPIClient) SetupProfileResponse(profile *models.ProfileResponse) {
	data, _ := json.Marshal(profile)
	m.On("Call", mock.Anything, models.MethodProfile, "").Return(string(data), nil)
}

// SetupSettingsResponse configures the mock to return a settings response.
func (m *MockAPIClient) SetupSettingsResponse(settings *models.SettingsResponse) {
	data, _ := json.Marshal(settings)
	m.On("Call", mock.Anything, models.MethodSettings, "").Return(string(data), nil)
}

func (m *MockAPIClient) SetupSettingsError(err error) {
	m.On("Call", mock.Anything, models.MethodSettings, "").Return("", err)
}

// SetupPlaybackNotification configures the mock to return a playback
// state notification.
func (m *MockAPIClient) SetupPlaybackNotification(status *models.PlaybackStatusResponse) {
	data, _ := json.Marshal(status)
	m.On("WaitNotification", mock.Anything, mock.Anything, models.NotificationPlaybackState).
		Return(string(data), nil)
}
