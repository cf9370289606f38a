package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

// JWTTestSuite JWT工具测试套件
type JWTTestSuite struct {
	suite.Suite
	manager *JWTManager
}

func (suite *JWTTestSuite) SetupTest() {
	suite.manager = NewJWTManager("test-secret-key", 1*time.Hour)
}

// 测试生成并验证令牌
func (suite *JWTTestSuite) TestGenerateAndValidate() {
	token, err := suite.manager.GenerateToken("admin")
	suite.NoError(err)
	suite.NotEmpty(token)

	claims, err := suite.manager.ValidateToken(token)
	suite.NoError(err)
	suite.Equal("admin", claims.Username)
	suite.Equal("if-gateway", claims.Issuer)
}

// 测试篡改的令牌
func (suite *JWTTestSuite) TestTamperedToken() {
	token, err := suite.manager.GenerateToken("admin")
	suite.NoError(err)

	_, err = suite.manager.ValidateToken(token + "x")
	suite.ErrorIs(err, ErrInvalidToken)
}

// 测试错误密钥签发的令牌
func (suite *JWTTestSuite) TestWrongSecret() {
	other := NewJWTManager("other-secret", 1*time.Hour)
	token, err := other.GenerateToken("admin")
	suite.NoError(err)

	_, err = suite.manager.ValidateToken(token)
	suite.ErrorIs(err, ErrInvalidToken)
}

// 测试过期令牌
func (suite *JWTTestSuite) TestExpiredToken() {
	expired := NewJWTManager("test-secret-key", -1*time.Minute)
	token, err := expired.GenerateToken("admin")
	suite.NoError(err)

	_, err = suite.manager.ValidateToken(token)
	suite.ErrorIs(err, ErrExpiredToken)
}

// 测试空字符串
func (suite *JWTTestSuite) TestEmptyToken() {
	_, err := suite.manager.ValidateToken("")
	suite.ErrorIs(err, ErrInvalidToken)
}

func TestJWTSuite(t *testing.T) {
	suite.Run(t, new(JWTTestSuite))
}
