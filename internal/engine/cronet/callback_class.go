package cronet

import _ "embed"

//go:generate javac -cp cronet_api.jar -d assets assets/FraktgoCallback.java

// callbackClassBytes is the compiled FraktgoCallback.class (see
// assets/FraktgoCallback.java), embedded at build time and loaded into the
// JVM with JNI's DefineClass rather than shipped as a separate APK asset —
// matching original_source/src/backend/android/callback.rs's "embedded
// class-file resource" design so this module has no runtime dependency on
// where an app's classpath happens to look.
//go:embed assets/FraktgoCallback.class
var callbackClassBytes []byte
