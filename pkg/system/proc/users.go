package proc

import (
	"os/user"
	"strconv"
	"sync"
)

// userCache resolves uid -> username once and remembers the answer.
// An unknown uid resolves to its decimal string; that negative result
// is cached too, so a uid missing from the user database does not cost
// a lookup on every pass.
type userCache struct {
	lock  sync.Mutex
	names map[uint32]string
}

func newUserCache() *userCache {
	return &userCache{names: make(map[uint32]string)}
}

func (c *userCache) Name(uid uint32) string {
	c.lock.Lock()
	defer c.lock.Unlock()

	if name, ok := c.names[uid]; ok {
		return name
	}

	name := strconv.FormatUint(uint64(uid), 10)
	if u, err := user.LookupId(name); err == nil {
		name = u.Username
	}
	c.names[uid] = name
	return name
}
