// Copyright (C) 2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package zoneread

import (
	"context"
	"time"
)

func (s *Session) SetClock(now func() time.Time) { s.now = now }

func (s *Session) SetSleep(sleep func(context.Context, time.Duration)) { s.sleep = sleep }
