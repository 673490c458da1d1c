// Package clientmqtt is the command and state transport: commands arrive on
// <prefix>/cmd/<name>, state and events leave on <prefix>/<topic>.
package clientmqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"lightdesk/internal/config"
	"lightdesk/internal/logger"
)

// ClientMQTT структура клиента MQTT.
type ClientMQTT struct {
	log       logger.Logger
	cfgClient config.MQTTConf
	opts      *mqtt.ClientOptions
	handler   Handler
	onConnect func()

	mu     sync.RWMutex
	ctx    context.Context
	client mqtt.Client
}

// NewClient конструктор.
func NewClient(log logger.Logger, cfgClient config.MQTTConf) *ClientMQTT {
	return &ClientMQTT{
		log:       log,
		cfgClient: cfgClient,
	}
}

func (c *ClientMQTT) logger() *logger.Log {
	return c.log.With(logger.Fields{"module": "mqtt"})
}

// Start begins connecting to the broker and returns without waiting for it.
// Every command is fed to handler; onConnect, if not nil, runs after each
// (re)connection once the command topics are subscribed.
func (c *ClientMQTT) Start(ctx context.Context, handler Handler, onConnect func()) error {
	if c.log.GetLevel() == "debug" {
		mqtt.ERROR = log.New(os.Stdout, "[ERROR] ", 0)
		mqtt.CRITICAL = log.New(os.Stdout, "[CRIT] ", 0)
		mqtt.WARN = log.New(os.Stdout, "[WARN]  ", 0)
	}

	c.handler = handler
	c.onConnect = onConnect

	c.opts = mqtt.NewClientOptions().
		AddBroker(fmt.Sprintf("tcp://%s:%s", c.cfgClient.Host, c.cfgClient.Port)).
		SetUsername(c.cfgClient.User).
		SetPassword(c.cfgClient.Password).
		SetDefaultPublishHandler(c.messageHandler).
		SetOnConnectHandler(c.connectHandler).
		SetConnectionLostHandler(c.connectLostHandler).
		SetClientID(c.cfgClient.ClientID).
		SetOrderMatters(true).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetMaxReconnectInterval(5 * time.Second).
		SetKeepAlive(30 * time.Second)

	if ctx.Err() != nil {
		return errors.New("context canceled")
	}

	client := mqtt.NewClient(c.opts)
	c.mu.Lock()
	c.ctx = ctx
	c.client = client
	c.mu.Unlock()

	// С ConnectRetry токен завершается только после ответа брокера.
	token := client.Connect()
	go func() {
		select {
		case <-ctx.Done():
			return
		case <-token.Done():
			if token.Error() != nil {
				c.logger().Errorf("connect to broker: %v", token.Error())
				return
			}
		}
		c.logger().Infof("Status: %v", client.IsConnected())
	}()
	return nil
}

// Stop disconnects from the broker and ends a pending connect retry.
func (c *ClientMQTT) Stop() error {
	client, _ := c.session()
	if client != nil && client.IsConnected() {
		client.Disconnect(500)
	}
	return nil
}

func (c *ClientMQTT) session() (mqtt.Client, context.Context) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.client, c.ctx
}

// connectHandler (re)subscribes the command topics; a clean session loses them on reconnect.
func (c *ClientMQTT) connectHandler(_ mqtt.Client) {
	c.logger().Info("client connected to server")
	c.sub(commandFilter(c.cfgClient.TopicPrefix))
	if c.onConnect != nil {
		c.onConnect()
	}
}

func (c *ClientMQTT) connectLostHandler(_ mqtt.Client, err error) {
	c.logger().Errorf("server connect lost: %v\n", err)
}

func (c *ClientMQTT) messageHandler(_ mqtt.Client, msg mqtt.Message) {
	c.logger().Debugf("received message: %s from topic: %s", msg.Payload(), msg.Topic())
	name, ok := commandName(c.cfgClient.TopicPrefix, msg.Topic())
	if !ok {
		c.logger().Debugf("topic %s is not a command, skipped", msg.Topic())
		return
	}
	if c.handler == nil {
		return
	}
	// Ошибка уже опубликована обработчиком в event/error.
	_ = c.handler(name, msg.Payload())
}

func (c *ClientMQTT) sub(topic string) {
	client, ctx := c.session()
	token := client.Subscribe(topic, c.cfgClient.Qos, nil)
	go func() {
		select {
		case <-ctx.Done():
			return
		case <-token.Done():
			if token.Error() != nil {
				c.logger().Errorf("topic %s subscription error. %v\n", topic, token.Error())
				return
			}
		}
		c.logger().Debugf("topic %s subscribed\n", topic)
	}()
}

// Publish sends payload as JSON to <prefix>/<topic>. State topics are retained.
func (c *ClientMQTT) Publish(topic string, payload interface{}) {
	client, ctx := c.session()
	if client == nil {
		return
	}
	msg, err := json.Marshal(payload)
	if err != nil {
		c.logger().Errorf("public topic %s. msg: %v", topic, err)
		return
	}
	full := joinTopic(c.cfgClient.TopicPrefix, topic)
	token := client.Publish(full, c.cfgClient.Qos, retained(topic), msg)
	go func() {
		select {
		case <-ctx.Done():
			return
		case <-token.Done():
			if token.Error() != nil {
				c.logger().Errorf("error publish topic %s. %v\n", full, token.Error())
			}
		}
	}()
}

func joinTopic(prefix, topic string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return topic
	}
	return prefix + "/" + topic
}

func commandFilter(prefix string) string {
	return joinTopic(prefix, cmdSegment+"/+")
}

// commandName extracts <name> from <prefix>/cmd/<name>.
func commandName(prefix, topic string) (string, bool) {
	rest := strings.TrimPrefix(topic, joinTopic(prefix, cmdSegment)+"/")
	if rest == topic || rest == "" || strings.Contains(rest, "/") {
		return "", false
	}
	return rest, true
}

func retained(topic string) bool {
	root := topic
	if i := strings.IndexByte(topic, '/'); i >= 0 {
		root = topic[:i]
	}
	return retainedRoots[root]
}
