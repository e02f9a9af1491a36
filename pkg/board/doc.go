// Package board provides type-safe Go definitions, the storage and change-bus contracts,
// and the Redis implementation of both for the Warren room board.
//
// # Overview
//
// The board is the shared state every Warren client reads and writes: which rooms exist,
// where they sit on the floor plan, whether each one is open, and how each room should
// open and close on every weekday. Clients never talk to each other; they converge by
// writing to the Store and listening to the Bus.
//
// # Records
//
// Rooms are the physical rooms. Each carries a Category (the floor it belongs to) and an
// OrderKey that sequences rooms inside that category.
//
// RoomStatus holds the open/closed state of one room. ManualOverride marks a status a
// human set; automation leaves such a room alone until the next daily reset.
//
// DailyConfig is the schedule of one room on one weekday, keyed by (room_id, weekday).
//
// AppSettings is a singleton row holding the night-mode window and the date of the last
// daily reset. Its last_daily_reset column doubles as the only lock between clients:
// ClaimDailyReset advances it atomically, and the one caller that wins performs the reset.
//
// # Multi-Instance Support
//
// All Redis keys and Pub/Sub channels are namespaced by instance name, so several boards
// can share one Redis server without seeing each other's records or changes.
//
// # Usage Example
//
//	client, err := board.NewClient(&redis.Options{Addr: "localhost:6379"}, "office")
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer client.Close()
//
//	sub, err := client.Subscribe(ctx, board.KindStatus)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer sub.Close()
//
//	room, err := client.InsertRoom(ctx, board.Room{Name: "Kitchen", Category: board.CategoryGroundFloor})
//	...
//	change := <-sub.Changes() // change.Kind == board.KindStatus
//
// # Redis Schema
//
// Records are Redis hashes whose field names match the JSON tags:
//
//	warren:{instance}:room:{room_id}              Room
//	warren:{instance}:status:{room_id}            RoomStatus
//	warren:{instance}:config:{room_id}:{weekday}  DailyConfig
//	warren:{instance}:settings                    AppSettings
//	warren:{instance}:index:{kind}                set of members per kind
//
// Every write publishes a JSON-encoded Change on warren:{instance}:{kind}_events.
package board
