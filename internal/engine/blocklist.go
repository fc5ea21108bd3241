package engine

import (
	"context"
	"net/netip"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/xela07ax/higher-guardian/internal/infra"
	"go.uber.org/zap"
)

// IPBlocker локальный блок-лист (NetworkSecurityMonitor).
type IPBlocker interface {
	BlockIP(ip netip.Addr) bool
	UnblockIP(ip netip.Addr) bool
	BlockedIPs() []netip.Addr
}

// BlocklistSync держит локальный блок-лист в согласии с Redis.
// Источник истины — set guardian:network:blocked_ips, изменения приходят сигналами "ip:on|off".
type BlocklistSync struct {
	rdb    *redis.Client
	local  IPBlocker
	seed   []string
	logger *zap.Logger
}

func NewBlocklistSync(rdb *redis.Client, local IPBlocker, seed []string, logger *zap.Logger) *BlocklistSync {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BlocklistSync{
		rdb:    rdb,
		local:  local,
		seed:   seed,
		logger: logger.Named("blocklist"),
	}
}

// Срок жизни блокировки прогрева: за это время другой инстанс не заливает seed повторно.
const warmupLockTTL = 30 * time.Second

// Init прогревает Redis начальным списком из конфига и загружает текущее состояние.
func (b *BlocklistSync) Init(ctx context.Context) error {
	if err := b.warmup(ctx); err != nil {
		return err
	}
	return b.reconcile(ctx)
}

// warmup блокирует seed локально и заливает его в пустой set.
// Redis заливает только инстанс, взявший SetNX блокировку; непустой set не трогаем.
func (b *BlocklistSync) warmup(ctx context.Context) error {
	seed := normalizeSeed(b.seed, b.logger)
	for _, ip := range seed {
		b.local.BlockIP(ip)
	}
	if len(seed) == 0 {
		return nil
	}

	ok, err := b.rdb.SetNX(ctx, infra.RedisKeyLockBlockedIPs, "processing", warmupLockTTL).Result()
	if err != nil {
		b.logger.Warn("blocklist warm-up lock failed, skipping seed", zap.Error(err))
		return nil
	}
	if !ok {
		return nil
	}

	count, err := b.rdb.SCard(ctx, infra.RedisKeyBlockedIPs).Result()
	if err != nil {
		b.logger.Warn("could not check blocklist size, seeding anyway", zap.Error(err))
		count = 0
	}
	if count > 0 {
		return nil
	}

	members := make([]interface{}, 0, len(seed))
	for _, ip := range seed {
		members = append(members, ip.String())
	}
	if err := b.rdb.SAdd(ctx, infra.RedisKeyBlockedIPs, members...).Err(); err != nil {
		return err
	}
	b.logger.Info("blocklist seeded from config", zap.Int("count", len(members)))
	return nil
}

// normalizeSeed разбирает адреса из конфига, убирает дубликаты и IPv4-mapped форму.
func normalizeSeed(seed []string, logger *zap.Logger) []netip.Addr {
	out := make([]netip.Addr, 0, len(seed))
	seen := make(map[netip.Addr]struct{}, len(seed))
	for _, raw := range seed {
		ip, err := netip.ParseAddr(raw)
		if err != nil {
			logger.Warn("skipping malformed blocked ip in config", zap.String("ip", raw))
			continue
		}
		ip = ip.Unmap()
		if _, dup := seen[ip]; dup {
			continue
		}
		seen[ip] = struct{}{}
		out = append(out, ip)
	}
	return out
}

// StartListener блокирует до отмены ctx. При каждом переподключении состояние перечитывается.
func (b *BlocklistSync) StartListener(ctx context.Context) {
	b.logger.Info("ip block listener started", zap.String("chan", infra.RedisChanIPBlock))
	ListenStateResilient(ctx, b.rdb, b.logger, infra.RedisChanIPBlock,
		func() error { return b.reconcile(ctx) },
		b.apply,
	)
}

// reconcile: все члены set блокируются, локальные записи вне set снимаются.
func (b *BlocklistSync) reconcile(ctx context.Context) error {
	members, err := b.rdb.SMembers(ctx, infra.RedisKeyBlockedIPs).Result()
	if err != nil {
		return err
	}

	remote := make(map[netip.Addr]struct{}, len(members))
	for _, m := range members {
		ip, err := netip.ParseAddr(m)
		if err != nil {
			b.logger.Warn("skipping malformed blocklist entry", zap.String("entry", m))
			continue
		}
		remote[ip.Unmap()] = struct{}{}
		b.local.BlockIP(ip.Unmap())
	}

	for _, ip := range b.local.BlockedIPs() {
		if _, ok := remote[ip]; !ok {
			b.local.UnblockIP(ip)
		}
	}
	return nil
}

func (b *BlocklistSync) apply(id string, blocked bool) {
	ip, err := netip.ParseAddr(id)
	if err != nil {
		b.logger.Error("invalid ip in block signal", zap.String("ip", id))
		return
	}
	ip = ip.Unmap()
	if blocked {
		if b.local.BlockIP(ip) {
			b.logger.Info("ip blocked by signal", zap.String("ip", ip.String()))
		}
		return
	}
	if b.local.UnblockIP(ip) {
		b.logger.Info("ip unblocked by signal", zap.String("ip", ip.String()))
	}
}
