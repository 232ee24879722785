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
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/kolofinance/kolo"
	"github.com/kolofinance/kolo/api/middleware"
	"github.com/kolofinance/kolo/config"
)

type Api struct {
	kolo   *kolo.Kolo
	router *gin.Engine
}

func (a Api) Router() *gin.Engine {
	router := a.router

	router.POST("/withdrawals", a.RequestWithdrawal)
	router.GET("/withdrawals/:id", a.GetWithdrawal)
	router.POST("/withdrawals/:id/cancel", a.CancelWithdrawal)

	router.GET("/wallets/:user_id", a.GetWallets)
	router.GET("/wallets/:user_id/:currency", a.GetWallet)

	router.POST("/preferences", a.SetPreference)
	router.DELETE("/preferences/:user_id/:group_id", a.DisableAutoPay)
	router.DELETE("/instruments/:id", a.RemoveInstrument)

	router.POST("/obligations/:id/manual-payment", a.RecordManualPayment)
	router.POST("/obligations/:id/confirm", a.ConfirmReceipt)

	router.GET("/notifications/:user_id", a.GetNotifications)
	router.POST("/notifications/:id/read", a.MarkNotificationRead)

	router.POST("/sweeps/contributions", a.SweepContributions)
	router.POST("/sweeps/retries", a.SweepRetries)
	router.POST("/sweeps/withdrawals", a.SweepWithdrawals)

	return a.router
}

func NewAPI(k *kolo.Kolo) *Api {
	gin.SetMode(gin.ReleaseMode)
	conf, err := config.Fetch()
	if err != nil {
		return nil
	}
	r := gin.Default()
	r.Use(otelgin.Middleware(conf.ProjectName))

	r.GET("/", func(c *gin.Context) {
		c.JSON(200, "server running...")
	})

	a := &Api{kolo: k, router: r}

	// Webhook routes mount ahead of auth and rate limiting: the processors
	// sign their own calls, and throttling their delivery would turn a burst
	// into a retry storm.
	r.POST("/webhooks/stripe", a.StripeWebhook)
	r.POST("/webhooks/paystack", a.PaystackWebhook)

	if conf.Server.Secure {
		r.Use(middleware.SecretKeyAuthMiddleware())
	}
	r.Use(middleware.RateLimitMiddleware(conf))

	return a
}
