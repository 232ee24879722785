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
package api

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/kolofinance/kolo/provider"
)

// StripeWebhook receives Stripe event deliveries.
func (a Api) StripeWebhook(c *gin.Context) {
	a.handleWebhook(c, provider.Stripe, c.GetHeader("Stripe-Signature"))
}

// PaystackWebhook receives Paystack event deliveries.
func (a Api) PaystackWebhook(c *gin.Context) {
	a.handleWebhook(c, provider.Paystack, c.GetHeader("x-paystack-signature"))
}

// handleWebhook verifies and applies one provider delivery. Only a bad
// signature or an unreadable payload earns a 4xx; anything that goes wrong
// after verification is our problem, and answering non-2xx would just make
// the provider hammer us with redeliveries of an event we already logged.
func (a Api) handleWebhook(c *gin.Context, providerName, signature string) {
	proc, err := a.kolo.Providers().Get(providerName)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
		return
	}

	if err := proc.VerifyWebhookSignature(payload, signature); err != nil {
		logrus.Warnf("rejected %s webhook: %v", providerName, err)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
		return
	}

	event, err := proc.ParseWebhook(payload)
	if err != nil {
		logrus.Infof("rejected unparseable %s webhook: %v", providerName, err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := a.kolo.HandleProviderEvent(c.Request.Context(), event); err != nil {
		logrus.Errorf("failed to process %s event %s: %v", providerName, event.EventID, err)
		c.JSON(http.StatusOK, gin.H{"status": "accepted"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "processed"})
}
