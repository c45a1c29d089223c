package command

import gocmd "github.com/goliatone/go-command"

var (
	_ gocmd.Commander[ConnectMessage]            = (*ConnectCommand)(nil)
	_ gocmd.Commander[CompleteCallbackMessage]   = (*CompleteCallbackCommand)(nil)
	_ gocmd.Commander[DisconnectMessage]         = (*DisconnectCommand)(nil)
	_ gocmd.Commander[RefreshMessage]            = (*RefreshCommand)(nil)
	_ gocmd.Commander[ChargeSingleMessage]       = (*ChargeSingleCommand)(nil)
	_ gocmd.Commander[ChargeSubscriptionMessage] = (*ChargeSubscriptionCommand)(nil)
	_ gocmd.Commander[CancelSubscriptionMessage] = (*CancelSubscriptionCommand)(nil)
	_ gocmd.Commander[RefundMessage]             = (*RefundCommand)(nil)
)
