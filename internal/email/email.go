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

// Package email delivers notification emails through a configurable provider.
package email

import (
	"context"

	"github.com/pkg/errors"

	"github.com/kolofinance/kolo/config"
)

// Sender delivers one email.
type Sender interface {
	Send(ctx context.Context, toAddress, subject, body string) error
	Name() string
}

// NewSender builds the provider selected in configuration.
func NewSender(conf config.EmailConfig) (Sender, error) {
	switch conf.Provider {
	case "mailgun":
		return newMailgunSender(conf)
	case "sendgrid", "":
		return newSendgridSender(conf)
	default:
		return nil, errors.Errorf("unsupported email provider: %s", conf.Provider)
	}
}
