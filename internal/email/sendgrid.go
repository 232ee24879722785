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

package email

import (
	"context"

	"github.com/pkg/errors"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/kolofinance/kolo/config"
)

type sendgridSender struct {
	client *sendgrid.Client
	from   string
}

func newSendgridSender(conf config.EmailConfig) (Sender, error) {
	if conf.APIKey == "" || conf.FromAddress == "" {
		return nil, errors.New("sendgrid requires api_key and from_address")
	}
	return &sendgridSender{
		client: sendgrid.NewSendClient(conf.APIKey),
		from:   conf.FromAddress,
	}, nil
}

func (s *sendgridSender) Send(ctx context.Context, toAddress, subject, body string) error {
	from := mail.NewEmail("Kolo", s.from)
	to := mail.NewEmail("", toAddress)
	message := mail.NewSingleEmail(from, subject, to, body, "")

	resp, err := s.client.SendWithContext(ctx, message)
	if err != nil {
		return errors.Wrap(err, "sendgrid send error")
	}
	if resp.StatusCode >= 400 {
		return errors.Errorf("sendgrid send failed: status %d: %s", resp.StatusCode, resp.Body)
	}
	return nil
}

func (s *sendgridSender) Name() string {
	return "sendgrid"
}
