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

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/hibiken/asynq"
	"github.com/hibiken/asynqmon"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"go.elastic.co/apm/module/apmlogrus/v2"
	"go.opentelemetry.io/otel"

	"github.com/kolofinance/kolo"
	"github.com/kolofinance/kolo/config"
	"github.com/kolofinance/kolo/internal/email"
	redis_db "github.com/kolofinance/kolo/internal/redis-db"
)

func init() {
	logrus.AddHook(&apmlogrus.Hook{})
}

// deliverNotification delivers the email leg of a notification task. The
// in-app inbox row was written before the task was enqueued.
func (k *koloInstance) deliverNotification(ctx context.Context, t *asynq.Task) error {
	ctx, span := otel.Tracer("kolo.notifications.worker").Start(ctx, "Deliver Notification From Redis Queue")
	defer span.End()

	var payload kolo.NotificationPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		logrus.Error(err)
		return err
	}

	sender, err := email.NewSender(k.cnf.Notification.Email)
	if err != nil {
		logrus.Errorf("email provider unavailable, dropping email for %s: %v", payload.Data.NotificationID, err)
		return nil
	}

	if err := k.kolo.DeliverNotificationEmail(ctx, sender, payload.Data); err != nil {
		logrus.Infof("Notification %s pushed back for retry due to error: %v", payload.Data.NotificationID, err)
		return err
	}

	log.Println(" [*] Notification Delivered", payload.Data.NotificationID)
	return nil
}

// releaseWithdrawal submits one withdrawal whose hold window has elapsed.
func (k *koloInstance) releaseWithdrawal(ctx context.Context, t *asynq.Task) error {
	ctx, span := otel.Tracer("kolo.withdrawals.worker").Start(ctx, "Release Withdrawal From Redis Queue")
	defer span.End()

	var payload kolo.WithdrawalReleasePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		logrus.Error(err)
		return err
	}

	if err := k.kolo.ProcessWithdrawal(ctx, payload.WithdrawalID); err != nil {
		logrus.Infof("Withdrawal %s pushed back for retry due to error: %v", payload.WithdrawalID, err)
		return err
	}

	log.Println(" [*] Withdrawal Released", payload.WithdrawalID)
	return nil
}

func initializeQueues() map[string]int {
	cfg, err := config.Fetch()
	if err != nil {
		log.Printf("Error fetching config, using defaults: %v", err)
		return nil
	}

	queues := make(map[string]int)
	queues[cfg.Queue.NotificationQueue] = 1
	queues[cfg.Queue.WithdrawalReleaseQueue] = 3
	return queues
}

func initializeWorkerServer(conf *config.Configuration, queues map[string]int) (*asynq.Server, error) {
	redisOption, err := redis_db.ParseRedisURL(conf.Redis.Dns, conf.Redis.SkipTLSVerify)
	if err != nil {
		return nil, fmt.Errorf("error parsing Redis URL: %v", err)
	}

	return asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:      redisOption.Addr,
			Password:  redisOption.Password,
			DB:        redisOption.DB,
			TLSConfig: redisOption.TLSConfig,
		},
		asynq.Config{
			Concurrency: 1,
			Queues:      queues,
		},
	), nil
}

func initializeTaskHandlers(k *koloInstance, mux *asynq.ServeMux) {
	cfg, err := config.Fetch()
	if err != nil {
		log.Printf("Error fetching config, using defaults: %v", err)
		return
	}

	mux.HandleFunc(cfg.Queue.NotificationQueue, k.deliverNotification)
	mux.HandleFunc(cfg.Queue.WithdrawalReleaseQueue, k.releaseWithdrawal)
}

// initializeSweepScheduler runs the periodic sweeps inside the worker
// process: the daily contribution pass plus the retry and withdrawal
// backstops. Every sweep takes a Redis lease first, so running workers on
// several hosts is safe.
func initializeSweepScheduler(k *koloInstance) (*gocron.Scheduler, error) {
	s := gocron.NewScheduler(time.UTC)

	if _, err := s.Every(1).Day().At("06:00").Do(func() {
		summary, err := k.kolo.SweepAll(context.Background(), time.Now())
		if err != nil {
			logrus.Errorf("contribution sweep failed: %v", err)
			return
		}
		logrus.Infof("contribution sweep done: %+v", summary)
	}); err != nil {
		return nil, err
	}

	if _, err := s.Every(30).Minutes().Do(func() {
		summary, err := k.kolo.SweepRetries(context.Background())
		if err != nil {
			logrus.Errorf("retry sweep failed: %v", err)
			return
		}
		logrus.Infof("retry sweep done: %+v", summary)
	}); err != nil {
		return nil, err
	}

	if _, err := s.Every(1).Hour().Do(func() {
		summary, err := k.kolo.SweepWithdrawals(context.Background())
		if err != nil {
			logrus.Errorf("withdrawal sweep failed: %v", err)
			return
		}
		logrus.Infof("withdrawal sweep done: %+v", summary)
	}); err != nil {
		return nil, err
	}

	s.StartAsync()
	return s, nil
}

// workerCommands defines the "workers" command to start worker processes.
// The workers consume the notification and withdrawal release queues and run
// the periodic sweeps.
func workerCommands(k *koloInstance) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workers",
		Short: "start kolo workers",
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()

			conf, err := config.Fetch()
			if err != nil {
				log.Fatal("Error fetching config:", err)
			}

			phClient, shutdown, err := initializeObservability(ctx)
			if err != nil {
				log.Printf("Observability initialization error: %v", err)
			}
			if shutdown != nil {
				defer func() {
					if err := shutdown(ctx); err != nil {
						log.Printf("Error during shutdown: %v", err)
					}
				}()
			}
			if phClient != nil {
				defer phClient.Close()
			}

			queues := initializeQueues()

			srv, err := initializeWorkerServer(conf, queues)
			if err != nil {
				log.Fatal(err)
			}

			mux := asynq.NewServeMux()
			initializeTaskHandlers(k, mux)

			scheduler, err := initializeSweepScheduler(k)
			if err != nil {
				log.Fatalf("could not start sweep scheduler: %v", err)
			}
			defer scheduler.Stop()

			// Start asynqmon server for health checks and monitoring
			redisOption, _ := redis_db.ParseRedisURL(conf.Redis.Dns, conf.Redis.SkipTLSVerify)
			h := asynqmon.New(asynqmon.Options{
				RootPath: "/monitoring",
				RedisConnOpt: asynq.RedisClientOpt{
					Addr:      redisOption.Addr,
					Password:  redisOption.Password,
					DB:        redisOption.DB,
					TLSConfig: redisOption.TLSConfig,
				},
			})

			go func() {
				monitoringAddr := fmt.Sprintf(":%s", conf.Queue.MonitoringPort)
				log.Printf("Asynqmon server listening on %s/monitoring", monitoringAddr)
				if err := http.ListenAndServe(monitoringAddr, h); err != nil {
					log.Fatalf("could not start asynqmon server: %v", err)
				}
			}()

			if err := srv.Run(mux); err != nil {
				log.Fatalf("could not run server: %v", err)
			}
		},
	}

	return cmd
}
