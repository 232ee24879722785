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

package kolo

import (
	"context"
	"embed"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kolofinance/kolo/config"
	"github.com/kolofinance/kolo/database"
	"github.com/kolofinance/kolo/internal/lock"
	redis_db "github.com/kolofinance/kolo/internal/redis-db"
	"github.com/kolofinance/kolo/model"
	"github.com/kolofinance/kolo/provider"
)

// Kolo is the contribution engine: it schedules charges for contribution
// circles, reconciles provider callbacks into wallet credits, and pays
// wallets out after the withdrawal hold.
type Kolo struct {
	datasource database.IDataSource
	redis      redis.UniversalClient
	queue      *Queue
	providers  *provider.Registry
	notifier   Notifier
}

//go:embed sql/*.sql
var SQLFiles embed.FS

// NewKolo initializes the engine with the provided datasource. It fetches
// the configuration and wires up Redis, the task queue, the processor
// registry and the notifier.
func NewKolo(db database.IDataSource) (*Kolo, error) {
	configuration, err := config.Fetch()
	if err != nil {
		return nil, err
	}
	redisClient, err := redis_db.NewRedisClient([]string{fmt.Sprintf("redis://%s", configuration.Redis.Dns)}, configuration.Redis.SkipTLSVerify)
	if err != nil {
		return nil, err
	}
	newQueue := NewQueue(configuration)
	newKolo := &Kolo{
		datasource: db,
		redis:      redisClient.Client(),
		queue:      newQueue,
		providers:  provider.NewRegistry(configuration),
	}
	newKolo.notifier = NewQueueNotifier(db, newQueue)
	return newKolo, nil
}

// Providers exposes the processor registry, mainly so webhook routes can
// resolve the processor that signed an inbound event.
func (k *Kolo) Providers() *provider.Registry {
	return k.providers
}

// acquireSweepLock takes the Redis lease that keeps overlapping invocations
// of one sweep kind from racing. The transactional guards below make
// overlaps safe anyway; the lease just keeps a slow run and a fresh trigger
// from doing the same work twice.
func (k *Kolo) acquireSweepLock(ctx context.Context, kind string) (*lock.Locker, error) {
	cnf, err := config.Fetch()
	if err != nil {
		return nil, err
	}
	locker := lock.NewLocker(k.redis, fmt.Sprintf("sweep:%s", kind), model.GenerateUUIDWithSuffix("lock"))
	if err := locker.Lock(ctx, time.Duration(cnf.Engine.SweepLockMinutes)*time.Minute); err != nil {
		return nil, err
	}
	return locker, nil
}
