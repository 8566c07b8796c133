//go:build windows

package asyncio

import (
	"github.com/eXtremal-ik7/asyncio-go/internal/opcore"
	"github.com/eXtremal-ik7/asyncio-go/internal/winexec"
)

func newConnectExecutor(op *opcore.Op) opcore.Executor  { return winexec.NewConnect(op) }
func newAcceptExecutor(op *opcore.Op) opcore.Executor   { return winexec.NewAccept(op) }
func newReadExecutor(op *opcore.Op) opcore.Executor     { return winexec.NewRead(op) }
func newWriteExecutor(op *opcore.Op) opcore.Executor    { return winexec.NewWrite(op) }
func newReadMsgExecutor(op *opcore.Op) opcore.Executor  { return winexec.NewReadMsg(op) }
func newWriteMsgExecutor(op *opcore.Op) opcore.Executor { return winexec.NewWriteMsg(op) }
