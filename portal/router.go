package portal

import (
	"context"
	nativeerrors "errors"
	"github.com/eclipse/paho.golang/paho"
	"github.com/lefinal/festfinder/errors"
	"github.com/lefinal/festfinder/event"
	"go.uber.org/zap"
	"sync"
	"time"
)

// mqttTimeout is the timeout for subscribe and unsubscribe requests to the
// MQTT server.
const mqttTimeout = 5 * time.Second

// mqttKiosk subscribes to and unsubscribes from topics at the MQTT server.
type mqttKiosk interface {
	Subscribe(ctx context.Context, s *paho.Subscribe) (*paho.Suback, error)
	Unsubscribe(ctx context.Context, u *paho.Unsubscribe) (*paho.Unsuback, error)
}

// mqttInboundRouter abstracts paho.Router with only stuff that is needed for
// router.
type mqttInboundRouter interface {
	RegisterHandler(topic string, handler paho.MessageHandler)
	UnregisterHandler(topic string)
}

// subscription is a container for the lifetime context.Context and the channel
// to forward the received paho.Publish message to.
type subscription struct {
	lifetime context.Context
	forward  chan<- event.Event[any]
}

// registeredHandler is a container for subscriptions to serve.
type registeredHandler struct {
	// subscriptions contains all active subscriptions that are served by the
	// handler.
	subscriptions map[*subscription]struct{}
	// subscriptionsMutex locks subscriptions. It is read-locked until a message
	// was forwarded to all subscriptions.
	subscriptionsMutex sync.RWMutex
}

// Handler returns a paho.MessageHandler that forwards to all subscriptions for
// the handler.
func (handler *registeredHandler) Handler() paho.MessageHandler {
	return func(publish *paho.Publish) {
		// Forward to all listeners.
		var allForwarded sync.WaitGroup
		handler.subscriptionsMutex.RLock()
		defer handler.subscriptionsMutex.RUnlock()
		for sub := range handler.subscriptions {
			allForwarded.Add(1)
			go func(sub *subscription) {
				defer allForwarded.Done()
				select {
				case <-sub.lifetime.Done():
				case sub.forward <- event.Event[any]{Publish: publish}:
				}
			}(sub)
		}
		allForwarded.Wait()
	}
}

// router is used for multiplexing MQTT subscriptions and forwarding received
// messages according to them.
type router struct {
	logger *zap.Logger
	// kiosk requests subscriptions at the MQTT server.
	kiosk mqttKiosk
	// inbound is the actual router that performs the matching.
	inbound mqttInboundRouter
	// registeredHandlers holds all handlers by subscribed topics.
	registeredHandlers map[Topic]*registeredHandler
	// registeredHandlersMutex locks registeredHandlers.
	registeredHandlersMutex sync.Mutex
}

func newRouter(logger *zap.Logger, kiosk mqttKiosk, inbound mqttInboundRouter) *router {
	return &router{
		logger:             logger,
		kiosk:              kiosk,
		inbound:            inbound,
		registeredHandlers: make(map[Topic]*registeredHandler),
	}
}

// subscribe for the given Topic and forward messages to the given channel until
// the context.Context is done. Then the channel is closed.
func (router *router) subscribe(lifetime context.Context, topic Topic, forward chan<- event.Event[any]) {
	router.registeredHandlersMutex.Lock()
	defer router.registeredHandlersMutex.Unlock()
	// Check if already existing.
	handlerRef, ok := router.registeredHandlers[topic]
	if !ok {
		handlerRef = &registeredHandler{subscriptions: make(map[*subscription]struct{})}
		router.registeredHandlers[topic] = handlerRef
	}
	// Add subscription.
	sub := &subscription{
		lifetime: lifetime,
		forward:  forward,
	}
	handlerRef.subscriptionsMutex.Lock()
	handlerRef.subscriptions[sub] = struct{}{}
	handlerRef.subscriptionsMutex.Unlock()
	if !ok {
		// Subscribe MQTT topic.
		router.inbound.RegisterHandler(string(topic), handlerRef.Handler())
		go router.subscribeMQTT(topic)
		router.logger.Debug("subscribed to topic", zap.Any("topic", topic))
	}
	// Unsubscribe when lifetime done.
	go func() {
		<-lifetime.Done()
		router.unsubscribe(topic, sub)
	}()
}

// subscribeMQTT requests a subscription for the Topic at the MQTT server.
func (router *router) subscribeMQTT(topic Topic) {
	timeout, cancel := context.WithTimeout(context.Background(), mqttTimeout)
	defer cancel()
	_, err := router.kiosk.Subscribe(timeout, &paho.Subscribe{
		Subscriptions: map[string]paho.SubscribeOptions{
			string(topic): {QoS: mqttQOS},
		},
	})
	if err != nil {
		if nativeerrors.Is(err, errNotConnected) {
			router.logger.Debug("delaying subscription until connected", zap.Any("topic", topic))
			return
		}
		errors.Log(router.logger, errors.Wrap(err, "subscribe at mqtt server", errors.Details{"topic": topic}))
	}
}

// unsubscribeMQTT requests the MQTT server to no longer forward messages for
// the Topic.
func (router *router) unsubscribeMQTT(topic Topic) {
	timeout, cancel := context.WithTimeout(context.Background(), mqttTimeout)
	defer cancel()
	_, err := router.kiosk.Unsubscribe(timeout, &paho.Unsubscribe{
		Topics: []string{string(topic)},
	})
	if err != nil && !nativeerrors.Is(err, errNotConnected) {
		errors.Log(router.logger, errors.Wrap(err, "unsubscribe at mqtt server", errors.Details{"topic": topic}))
	}
}

// resubscribeAll requests subscriptions for all registered topics at the MQTT
// server. This is needed after (re)connecting.
func (router *router) resubscribeAll(ctx context.Context) {
	router.registeredHandlersMutex.Lock()
	topics := make([]Topic, 0, len(router.registeredHandlers))
	for topic := range router.registeredHandlers {
		topics = append(topics, topic)
	}
	router.registeredHandlersMutex.Unlock()
	for _, topic := range topics {
		select {
		case <-ctx.Done():
			return
		default:
		}
		router.subscribeMQTT(topic)
	}
}

// unsubscribe the given subscription for the Topic and close its forward
// channel. Only router should call this!
func (router *router) unsubscribe(topic Topic, sub *subscription) {
	router.registeredHandlersMutex.Lock()
	defer router.registeredHandlersMutex.Unlock()
	// Get handler.
	handler, ok := router.registeredHandlers[topic]
	if !ok {
		errors.Log(router.logger, errors.NewInternalError("unsubscribe called for unknown registered handler",
			errors.Details{"topic": topic}))
		return
	}
	// Remove subscription.
	handler.subscriptionsMutex.Lock()
	defer handler.subscriptionsMutex.Unlock()
	if _, ok := handler.subscriptions[sub]; !ok {
		errors.Log(router.logger, errors.NewInternalError("unsubscribe with unknown subscription for handler",
			errors.Details{"topic": topic}))
		return
	}
	delete(handler.subscriptions, sub)
	if sub.forward != nil {
		close(sub.forward)
	}
	// Check if subscriptions left as then we do not need to unregister the handler.
	if len(handler.subscriptions) > 0 {
		return
	}
	// Unregister handler.
	delete(router.registeredHandlers, topic)
	router.inbound.UnregisterHandler(string(topic))
	go router.unsubscribeMQTT(topic)
}
