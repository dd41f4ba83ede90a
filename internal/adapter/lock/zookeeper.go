package lock

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-zookeeper/zk"
	"go.uber.org/zap"

	"github.com/rl1809/inventory-reservation/internal/core/domain"
	"github.com/rl1809/inventory-reservation/internal/observability"
)

const (
	lockNodePrefix = "lock-"
	sequenceDigits = 10

	defaultLockRoot    = "/inventory/locks"
	defaultWaitTimeout = 30 * time.Second
)

var ErrLockTimeout = errors.New("timeout waiting for stock lock")

// ZooKeeperCoordinator serializes stock keys across processes. Each waiter
// creates an ephemeral sequential node under the key's directory and holds the
// lock once its node has the lowest sequence number. Key directories are
// container nodes, so the server removes them once the last waiter leaves.
type ZooKeeperCoordinator struct {
	conn        *zk.Conn
	root        string
	waitTimeout time.Duration
	log         *zap.Logger
	metrics     *observability.Metrics

	dirs sync.Map // key directories known to exist
}

func NewZooKeeperCoordinator(conn *zk.Conn, root string, waitTimeout time.Duration, log *zap.Logger, metrics *observability.Metrics) (*ZooKeeperCoordinator, error) {
	if root == "" {
		root = defaultLockRoot
	}
	if waitTimeout <= 0 {
		waitTimeout = defaultWaitTimeout
	}
	if log == nil {
		log = zap.NewNop()
	}
	if metrics == nil {
		metrics = observability.NewMetrics(nil)
	}

	c := &ZooKeeperCoordinator{
		conn:        conn,
		root:        strings.TrimSuffix(root, "/"),
		waitTimeout: waitTimeout,
		log:         log.With(zap.String("component", "zk_lock")),
		metrics:     metrics,
	}
	if err := c.ensurePath(c.root); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *ZooKeeperCoordinator) Acquire(ctx context.Context, key domain.StockKey) (func(), error) {
	start := time.Now()
	dir := c.root + "/" + url.PathEscape(key.String())
	node, err := c.createLockNode(dir)
	if err != nil {
		return nil, err
	}

	if err := c.waitTurn(ctx, dir, node); err != nil {
		c.deleteNode(node)
		return nil, err
	}
	c.metrics.LockWait.WithLabelValues("zookeeper").Observe(time.Since(start).Seconds())

	released := false
	return func() {
		if released {
			return
		}
		released = true
		c.deleteNode(node)
	}, nil
}

func (c *ZooKeeperCoordinator) waitTurn(ctx context.Context, dir, node string) error {
	timer := time.NewTimer(c.waitTimeout)
	defer timer.Stop()

	mine := strings.TrimPrefix(node, dir+"/")
	for {
		children, _, err := c.conn.Children(dir)
		if err != nil {
			return fmt.Errorf("list lock nodes: %w", err)
		}
		sortBySequence(children)

		idx := indexOf(children, mine)
		if idx < 0 {
			return fmt.Errorf("lock node %s vanished", node)
		}
		if idx == 0 {
			return nil
		}

		exists, _, events, err := c.conn.ExistsW(dir + "/" + children[idx-1])
		if err != nil {
			return fmt.Errorf("watch predecessor: %w", err)
		}
		if !exists {
			continue
		}

		select {
		case <-events:
		case <-timer.C:
			return ErrLockTimeout
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// createLockNode adds this waiter's node, recreating the key directory once if
// the server reaped it since it was cached.
func (c *ZooKeeperCoordinator) createLockNode(dir string) (string, error) {
	for attempt := 0; ; attempt++ {
		if err := c.ensureKeyDir(dir); err != nil {
			return "", err
		}
		node, err := c.conn.CreateProtectedEphemeralSequential(dir+"/"+lockNodePrefix, nil, zk.WorldACL(zk.PermAll))
		if errors.Is(err, zk.ErrNoNode) && attempt == 0 {
			c.dirs.Delete(dir)
			continue
		}
		if err != nil {
			return "", fmt.Errorf("create lock node: %w", err)
		}
		return node, nil
	}
}

func (c *ZooKeeperCoordinator) ensureKeyDir(dir string) error {
	if _, ok := c.dirs.Load(dir); ok {
		return nil
	}
	_, err := c.conn.CreateContainer(dir, nil, zk.FlagContainer, zk.WorldACL(zk.PermAll))
	if err != nil && !errors.Is(err, zk.ErrNodeExists) {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	c.dirs.Store(dir, struct{}{})
	return nil
}

func (c *ZooKeeperCoordinator) ensurePath(path string) error {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	cur := ""
	for _, p := range parts {
		cur += "/" + p
		exists, _, err := c.conn.Exists(cur)
		if err != nil {
			return fmt.Errorf("check %s: %w", cur, err)
		}
		if exists {
			continue
		}
		_, err = c.conn.Create(cur, nil, 0, zk.WorldACL(zk.PermAll))
		if err != nil && !errors.Is(err, zk.ErrNodeExists) {
			return fmt.Errorf("create %s: %w", cur, err)
		}
	}
	return nil
}

func (c *ZooKeeperCoordinator) deleteNode(node string) {
	err := c.conn.Delete(node, -1)
	if err != nil && !errors.Is(err, zk.ErrNoNode) {
		c.log.Error("lock_release_failed", zap.String("node", node), zap.Error(err))
	}
}

// sortBySequence orders nodes by the counter ZooKeeper appends, ignoring the
// protected-mode GUID prefix.
func sortBySequence(names []string) {
	sort.SliceStable(names, func(i, j int) bool {
		return sequenceOf(names[i]) < sequenceOf(names[j])
	})
}

func sequenceOf(name string) int64 {
	if len(name) < sequenceDigits {
		return -1
	}
	n, err := strconv.ParseInt(name[len(name)-sequenceDigits:], 10, 64)
	if err != nil {
		return -1
	}
	return n
}

func indexOf(names []string, name string) int {
	for i, n := range names {
		if n == name {
			return i
		}
	}
	return -1
}
