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

	mailgunv3 "github.com/mailgun/mailgun-go/v3"
	"github.com/pkg/errors"

	"github.com/kolofinance/kolo/config"
)

type mailgunSender struct {
	client mailgunv3.Mailgun
	from   string
}

func newMailgunSender(conf config.EmailConfig) (Sender, error) {
	if conf.Domain == "" || conf.APIKey == "" || conf.FromAddress == "" {
		return nil, errors.New("mailgun requires domain, api_key and from_address")
	}
	return &mailgunSender{
		client: mailgunv3.NewMailgun(conf.Domain, conf.APIKey),
		from:   conf.FromAddress,
	}, nil
}

func (m *mailgunSender) Send(ctx context.Context, toAddress, subject, body string) error {
	message := m.client.NewMessage(m.from, subject, body, toAddress)
	if _, _, err := m.client.Send(ctx, message); err != nil {
		return errors.Wrap(err, "mailgun send error")
	}
	return nil
}

func (m *mailgunSender) Name() string {
	return "mailgun"
}
