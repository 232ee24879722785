/*
Copyright 2025 Kolo Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package notification

import (
	"errors"
	"net/http"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/kolofinance/kolo/config"
	"github.com/stretchr/testify/assert"
)

func TestSlackNotification(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	config.MockConfig(&config.Configuration{
		Notification: config.Notification{
			Slack: config.SlackWebhook{WebhookUrl: "https://hooks.slack.com/services/test"},
		},
	})

	httpmock.RegisterResponder("POST", "https://hooks.slack.com/services/test",
		httpmock.NewJsonResponderOrPanic(http.StatusOK, map[string]string{"ok": "true"}))

	SlackNotification(errors.New("reconciler: credit failed"))

	assert.Equal(t, 1, httpmock.GetTotalCallCount())
}

func TestSlackNotificationSkipsWithoutConfig(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	config.MockConfig(&config.Configuration{})

	// No webhook URL configured: NotifyError must not make any HTTP call.
	SlackNotification(errors.New("boom"))

	info := httpmock.GetCallCountInfo()
	assert.Empty(t, info["POST https://hooks.slack.com/services/test"])
}
