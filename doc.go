// Package mqtt3 decodes MQTT 3.1 and 3.1.1 control packets.
//
// It implements the read side of the MQTT Version 3.1.1 OASIS Standard:
// http://docs.oasis-open.org/mqtt/mqtt/v3.1.1/os/mqtt-v3.1.1-os.html
// and accepts the MQTT 3.1 ("MQIsdp", level 3) CONNECT variant.
//
// # Packet Types
//
// Packets a server receives from clients are decoded into typed values:
//
//   - ConnectPacket: protocol, keep alive, client id, last will, credentials
//   - PublishPacket: topic, QoS, packet identifier, payload
//   - SubscribePacket, UnsubscribePacket: packet identifier and topic filters
//   - PingreqPacket, PingrespPacket: keep-alive
//
// Other packet types are recognized and rejected with
// ErrUnsupportedPacketType.
//
// # Reading Packets
//
// ReadPacket decodes exactly one packet from any io.Reader. The body
// decoder only sees a view bounded to the packet's remaining length, so a
// malformed packet can never consume bytes that belong to the next one:
//
//	pkt, n, err := mqtt3.ReadPacket(conn, 0)
//	if err != nil {
//	    // errors.Is(err, mqtt3.ErrInvalidQoS), io.ErrUnexpectedEOF, ...
//	}
//	switch p := pkt.(type) {
//	case *mqtt3.ConnectPacket:
//	    log.Println(p.ClientID)
//	}
//
// Reader decodes a stream of packets with buffering, size limits, rate
// limiting, logging and metrics:
//
//	r := mqtt3.NewReader(conn,
//	    mqtt3.WithMaxPacketSize(1<<20),
//	    mqtt3.WithLogger(mqtt3.NewStdLogger(os.Stderr, mqtt3.LogLevelDebug)),
//	)
//	for {
//	    pkt, err := r.Next(ctx)
//	    if err != nil {
//	        return err
//	    }
//	    dispatcher.Dispatch(ctx, connID, pkt)
//	}
//
// Decoded packets are never modified after they are returned. Dispatcher
// hands the same value to several handlers without copying.
//
// # Sources
//
// Listen opens TCP, TLS, Unix socket, QUIC and WebSocket listeners whose
// connections can be passed straight to ReadPacket or NewReader. For
// tests, package mqtt3test provides an in-memory MockStream.
package mqtt3
