// Package cronet implements the Android/Cronet Engine of SPEC_FULL.md
// section 4: requests are dispatched through Google's Cronet library via
// cgo and the Android NDK's JNI invocation API, with the UrlRequest.Callback
// implementation (FraktgoCallback, see assets/FraktgoCallback.java) loaded
// from an embedded .class resource rather than requiring the host app to
// ship it on its own classpath.
package cronet

/*
#cgo LDFLAGS: -landroid -llog
#include <jni.h>
#include <stdlib.h>
#include <string.h>

static JavaVM *fraktgo_jvm;

// Called by the JVM when this shared library is loaded (System.loadLibrary),
// handing us the JavaVM pointer every subsequent JNI call needs.
jint JNI_OnLoad(JavaVM *vm, void *reserved) {
	fraktgo_jvm = vm;
	return JNI_VERSION_1_6;
}

static JNIEnv *fraktgo_attach(void) {
	JNIEnv *env;
	(*fraktgo_jvm)->AttachCurrentThread(fraktgo_jvm, &env, NULL);
	return env;
}

// fraktgo_load_callback_class defines FraktgoCallback from raw bytecode
// bytes (classBytes/classLen) using the given ClassLoader-less DefineClass
// call, returning a global reference so it survives beyond this call.
static jclass fraktgo_load_callback_class(JNIEnv *env, const char *classBytes, int classLen) {
	jclass cls = (*env)->DefineClass(env, "dev/fraktgo/FraktgoCallback", NULL, (const jbyte *)classBytes, classLen);
	if (cls == NULL) {
		return NULL;
	}
	return (*env)->NewGlobalRef(env, cls);
}

// fraktgo_register_natives binds FraktgoCallback's four native methods to
// the Go-exported functions declared further below.
extern void goCronetOnResponseStarted(jlong handle, jint statusCode, const char *headersBlob);
extern void goCronetOnReadCompleted(jlong handle, const char *data, jint length);
extern void goCronetOnSucceeded(jlong handle);
extern void goCronetOnFailed(jlong handle, const char *message);

static void fraktgo_jni_onResponseStarted(JNIEnv *env, jobject thiz, jlong handle, jint statusCode, jstring headersBlob) {
	const char *blob = (*env)->GetStringUTFChars(env, headersBlob, NULL);
	goCronetOnResponseStarted(handle, statusCode, blob);
	(*env)->ReleaseStringUTFChars(env, headersBlob, blob);
}

static void fraktgo_jni_onReadCompleted(JNIEnv *env, jobject thiz, jlong handle, jbyteArray data, jint length) {
	jbyte *bytes = (*env)->GetByteArrayElements(env, data, NULL);
	goCronetOnReadCompleted(handle, (const char *)bytes, length);
	(*env)->ReleaseByteArrayElements(env, data, bytes, JNI_ABORT);
}

static void fraktgo_jni_onSucceeded(JNIEnv *env, jobject thiz, jlong handle) {
	goCronetOnSucceeded(handle);
}

static void fraktgo_jni_onFailed(JNIEnv *env, jobject thiz, jlong handle, jstring message) {
	const char *msg = message ? (*env)->GetStringUTFChars(env, message, NULL) : NULL;
	goCronetOnFailed(handle, msg);
	if (msg) {
		(*env)->ReleaseStringUTFChars(env, message, msg);
	}
}

static int fraktgo_register_natives(JNIEnv *env, jclass cls) {
	JNINativeMethod methods[] = {
		{"nativeOnResponseStarted", "(JILjava/lang/String;)V", (void *)fraktgo_jni_onResponseStarted},
		{"nativeOnReadCompleted",   "(J[BI)V",                  (void *)fraktgo_jni_onReadCompleted},
		{"nativeOnSucceeded",       "(J)V",                     (void *)fraktgo_jni_onSucceeded},
		{"nativeOnFailed",          "(JLjava/lang/String;)V",   (void *)fraktgo_jni_onFailed},
	};
	return (*env)->RegisterNatives(env, cls, methods, 4);
}

// fraktgo_start_request constructs a FraktgoCallback(handle) and starts a
// UrlRequest for url with the given HTTP method on the CronetEngine
// engineObj. engineObj/executorObj are long-lived global refs the host app
// supplies to New and the Adapter passes in on every call.
static void fraktgo_start_request(JNIEnv *env, jclass callbackClass, jobject engineObj, jobject executorObj,
                                   jlong handle, const char *method, const char *url,
                                   const char *rawHeaders, const char *body, int bodyLen) {
	jmethodID ctor = (*env)->GetMethodID(env, callbackClass, "<init>", "(J)V");
	jobject callback = (*env)->NewObject(env, callbackClass, ctor, (jlong)handle);

	jclass engineCls = (*env)->GetObjectClass(env, engineObj);
	jmethodID newReqBuilder = (*env)->GetMethodID(env, engineCls, "newUrlRequestBuilder",
		"(Ljava/lang/String;Lorg/chromium/net/UrlRequest$Callback;Ljava/util/concurrent/Executor;)Lorg/chromium/net/UrlRequest$Builder;");

	jstring jurl = (*env)->NewStringUTF(env, url);
	jobject builder = (*env)->CallObjectMethod(env, engineObj, newReqBuilder, jurl, callback, executorObj);

	jclass builderCls = (*env)->GetObjectClass(env, builder);
	jmethodID setMethod = (*env)->GetMethodID(env, builderCls, "setHttpMethod", "(Ljava/lang/String;)Lorg/chromium/net/UrlRequest$Builder;");
	(*env)->CallObjectMethod(env, builder, setMethod, (*env)->NewStringUTF(env, method));

	// rawHeaders and body/bodyLen are not attached to the request: no
	// builder.addHeader(...) or builder.setUploadDataProvider(...) call is
	// made, so only the method and URL reach Cronet.

	jmethodID buildMethod = (*env)->GetMethodID(env, builderCls, "build", "()Lorg/chromium/net/UrlRequest;");
	jobject request = (*env)->CallObjectMethod(env, builder, buildMethod);

	jclass requestCls = (*env)->GetObjectClass(env, request);
	jmethodID startMethod = (*env)->GetMethodID(env, requestCls, "start", "()V");
	(*env)->CallVoidMethod(env, request, startMethod);
}
*/
import "C"

import (
	"context"
	"strconv"
	"strings"
	"unsafe"

	frakt "github.com/nvm/fraktgo"
	"github.com/nvm/fraktgo/internal/corectx"
	"github.com/nvm/fraktgo/internal/handleregistry"
	"github.com/nvm/fraktgo/internal/progress"
)

type pending struct {
	ctx       *corectx.Context
	requestID string
}

var registry = handleregistry.New[*pending]()

// callbackClass is the global JNI class reference loaded once from the
// embedded bytecode; nil until the first Adapter is constructed.
var callbackClass C.jclass

func ensureCallbackClassLoaded(env *C.JNIEnv) error {
	if callbackClass != nil {
		return nil
	}
	blob := C.CString(string(callbackClassBytes))
	defer C.free(unsafe.Pointer(blob))

	cls := C.fraktgo_load_callback_class(env, blob, C.int(len(callbackClassBytes)))
	if cls == nil {
		return &frakt.Error{Kind: frakt.ErrInternal, Message: "failed to load FraktgoCallback bytecode via JNI DefineClass"}
	}
	if C.fraktgo_register_natives(env, cls) != 0 {
		return &frakt.Error{Kind: frakt.ErrInternal, Message: "failed to register FraktgoCallback native methods"}
	}
	callbackClass = cls
	return nil
}

// Adapter implements frakt.Engine on top of Cronet via JNI. engine and
// executor are long-lived global references to a CronetEngine and an
// Executor instance; a real Android host app supplies these (e.g. from
// its Application.onCreate), since constructing a CronetEngine requires
// an Android Context this library has no access to on its own.
type Adapter struct {
	session  *frakt.Session
	engine   C.jobject
	executor C.jobject
}

var _ frakt.Engine = (*Adapter)(nil)

// New builds a Cronet Adapter around an already-constructed CronetEngine
// and Executor, boxed as opaque JNI global references.
func New(session *frakt.Session, engine, executor uintptr) (*Adapter, error) {
	if session == nil {
		session = frakt.DefaultSession()
	}
	env := C.fraktgo_attach()
	if err := ensureCallbackClassLoaded(env); err != nil {
		return nil, err
	}
	return &Adapter{session: session, engine: C.jobject(engine), executor: C.jobject(executor)}, nil
}

// Kind reports EngineKindCronet.
func (a *Adapter) Kind() frakt.EngineKind { return frakt.EngineKindCronet }

// Execute starts a Cronet UrlRequest and waits for the header event.
func (a *Adapter) Execute(ctx context.Context, req *frakt.Request) (*frakt.Response, error) {
	data, contentType, err := req.Body.Encode()
	if err != nil {
		return nil, err
	}

	cctx := corectx.New(32, progress.Callback(req.ProgressCallback))
	p := &pending{ctx: cctx, requestID: req.URL.String()}
	handle := registry.Register(p)
	cctx.SetNativeHandle(handle)

	env := C.fraktgo_attach()

	cMethod := C.CString(string(req.Method))
	cURL := C.CString(req.URL.String())
	cHeaders := C.CString(rawHeaderBlob(req.Headers, contentType))
	defer C.free(unsafe.Pointer(cMethod))
	defer C.free(unsafe.Pointer(cURL))
	defer C.free(unsafe.Pointer(cHeaders))

	var cBody *C.char
	if len(data) > 0 {
		cBody = (*C.char)(C.CBytes(data))
		defer C.free(unsafe.Pointer(cBody))
	}

	C.fraktgo_start_request(env, callbackClass, a.engine, a.executor,
		C.jlong(handle), cMethod, cURL, cHeaders, cBody, C.int(len(data)))

	hdr, err := cctx.AwaitHeaders(ctx)
	if err != nil {
		registry.Release(handle)
		return nil, err
	}

	headers, _ := hdr.Headers.(*frakt.Header)
	return frakt.NewResponse(hdr.Status, headers, req.URL.String(), nil, cctx.Body), nil
}

// ExecuteBackgroundDownload delegates to Android's DownloadManager in a
// full implementation; not yet wired up here.
func (a *Adapter) ExecuteBackgroundDownload(ctx context.Context, req *frakt.DownloadRequest) (*frakt.DownloadResponse, error) {
	return nil, &frakt.Error{Kind: frakt.ErrInternal, Message: "cronet background downloads are not yet implemented"}
}

// WebSocketConnect is not implemented: Cronet itself has no WebSocket
// transport, so a full build would fall back to the portable engine's
// gorilla/websocket-backed implementation for this call.
func (a *Adapter) WebSocketConnect(ctx context.Context, rawURL string, opts frakt.WebSocketOptions) (frakt.WebSocket, error) {
	return nil, &frakt.Error{Kind: frakt.ErrInternal, Message: "cronet has no native websocket transport; use the portable engine"}
}

func rawHeaderBlob(h *frakt.Header, inferredContentType string) string {
	var sb strings.Builder
	h.Each(func(name, value string) {
		sb.WriteString(name)
		sb.WriteString(": ")
		sb.WriteString(value)
		sb.WriteString("\r\n")
	})
	if h.Get("Content-Type") == "" && inferredContentType != "" {
		sb.WriteString("Content-Type: ")
		sb.WriteString(inferredContentType)
		sb.WriteString("\r\n")
	}
	return sb.String()
}

// contentLength extracts a non-negative Content-Length header value, if
// present and parseable, for seeding the progress total.
func contentLength(h *frakt.Header) (uint64, bool) {
	v := h.Get("Content-Length")
	if v == "" {
		return 0, false
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

func parseHeaderBlob(blob string) *frakt.Header {
	out := frakt.NewHeader()
	for _, line := range strings.Split(blob, "\r\n") {
		if line == "" {
			continue
		}
		name, value, ok := strings.Cut(line, ": ")
		if !ok {
			continue
		}
		out.Add(name, value)
	}
	return out
}

//export goCronetOnResponseStarted
func goCronetOnResponseStarted(handle C.jlong, statusCode C.jint, headersBlob *C.char) {
	p, ok := registry.Get(uint64(handle))
	if !ok {
		return
	}
	headers := parseHeaderBlob(C.GoString(headersBlob))
	if total, ok := contentLength(headers); ok {
		p.ctx.Progress.SetTotal(total)
	}
	p.ctx.PublishHeaders(corectx.Header{Status: int(statusCode), Headers: headers, URL: p.requestID})
}

//export goCronetOnReadCompleted
func goCronetOnReadCompleted(handle C.jlong, data *C.char, length C.jint) {
	p, ok := registry.Get(uint64(handle))
	if !ok {
		return
	}
	chunk := C.GoBytes(unsafe.Pointer(data), length)
	p.ctx.Progress.Add(uint64(len(chunk)))
	_ = p.ctx.Body.Send(context.Background(), chunk)
}

//export goCronetOnSucceeded
func goCronetOnSucceeded(handle C.jlong) {
	p, ok := registry.Get(uint64(handle))
	if !ok {
		return
	}
	defer registry.Release(uint64(handle))
	p.ctx.Body.Close()
}

//export goCronetOnFailed
func goCronetOnFailed(handle C.jlong, message *C.char) {
	p, ok := registry.Get(uint64(handle))
	if !ok {
		return
	}
	defer registry.Release(uint64(handle))

	msg := "cronet request failed"
	if message != nil {
		msg = C.GoString(message)
	}
	err := frakt.NetworkError(0, msg, nil)
	p.ctx.FailHeaders(err)
	p.ctx.Body.Fail(err)
}
