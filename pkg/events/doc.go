/*
Package events implements the broker behind the control surface's
broadcast: one publisher (the snapshot ticker), many best-effort
subscribers (connected WebSocket clients).

	Publisher → frameCh (buffer 100) → broadcast loop → Subscriber (buffer 16, per client)

Publish never blocks beyond the internal buffered send; a subscriber
whose buffer is full is skipped for that frame, never retried or
dropped from the set by the broker itself — control.Hub owns removal
on send failure, tied to its WebSocket connection lifecycle.

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	sub := broker.Subscribe()
	defer broker.Unsubscribe(sub)
	go func() {
		for frame := range sub {
			conn.WriteMessage(websocket.TextMessage, frame)
		}
	}()

	broker.Publish(snapshotJSON)
*/
package events
